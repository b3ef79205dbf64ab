package storage

// MatchGlob matches a key against a shell-style glob pattern supporting
// '*' (any run), '?' (one byte) and '[...]' character classes with ranges
// and leading '^' or '!' negation. Matching is over the literal key bytes.
func MatchGlob(pattern, str string) bool {
	return globMatch(pattern, str)
}

func globMatch(pattern, str string) bool {
	p, s := 0, 0
	starP, starS := -1, 0

	for s < len(str) {
		if p < len(pattern) {
			switch pattern[p] {
			case '?':
				p++
				s++
				continue
			case '*':
				starP = p
				starS = s
				p++
				continue
			case '[':
				if matched, next := matchClass(pattern, p, str[s]); next > 0 {
					if matched {
						p = next
						s++
						continue
					}
				}
			default:
				if pattern[p] == str[s] {
					p++
					s++
					continue
				}
			}
		}

		// Mismatch: backtrack to the last '*' if there was one.
		if starP == -1 {
			return false
		}
		starS++
		p = starP + 1
		s = starS
	}

	for p < len(pattern) && pattern[p] == '*' {
		p++
	}
	return p == len(pattern)
}

// matchClass evaluates a '[...]' class starting at pattern[start]. It
// returns whether c is in the class and the index past the closing ']',
// or next=0 when the class is unterminated (treated as a mismatch).
func matchClass(pattern string, start int, c byte) (bool, int) {
	i := start + 1
	negate := false
	if i < len(pattern) && (pattern[i] == '^' || pattern[i] == '!') {
		negate = true
		i++
	}

	matched := false
	first := true
	for i < len(pattern) {
		if pattern[i] == ']' && !first {
			if negate {
				matched = !matched
			}
			return matched, i + 1
		}
		first = false

		if i+2 < len(pattern) && pattern[i+1] == '-' && pattern[i+2] != ']' {
			if pattern[i] <= c && c <= pattern[i+2] {
				matched = true
			}
			i += 3
			continue
		}
		if pattern[i] == c {
			matched = true
		}
		i++
	}
	return false, 0
}
