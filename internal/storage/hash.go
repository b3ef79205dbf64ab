package storage

// Hash is a field → value mapping. Field order is irrelevant.
type Hash struct {
	Fields map[string]string
}

func NewHash() *Hash {
	return &Hash{
		Fields: make(map[string]string),
	}
}

// Set stores a field, returns true when the field is new.
func (h *Hash) Set(field, value string) bool {
	_, exists := h.Fields[field]
	h.Fields[field] = value
	return !exists
}

// Get returns a field value.
func (h *Hash) Get(field string) (string, bool) {
	val, exists := h.Fields[field]
	return val, exists
}

// Delete removes a field, returns true when it existed.
func (h *Hash) Delete(field string) bool {
	if _, exists := h.Fields[field]; !exists {
		return false
	}
	delete(h.Fields, field)
	return true
}

// Exists reports field presence.
func (h *Hash) Exists(field string) bool {
	_, exists := h.Fields[field]
	return exists
}

// Len returns the field count.
func (h *Hash) Len() int {
	return len(h.Fields)
}

// GetAll returns alternating field, value pairs.
func (h *Hash) GetAll() []string {
	result := make([]string, 0, len(h.Fields)*2)
	for field, value := range h.Fields {
		result = append(result, field, value)
	}
	return result
}
