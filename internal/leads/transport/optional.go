package transport

import "encoding/json"

// OptionalFloat distinguishes an absent field from an explicit null, so a
// PATCH can clear a value.
type OptionalFloat struct {
	Value *float64
	Set   bool
}

func (o OptionalFloat) IsZero() bool {
	return !o.Set
}

func (o *OptionalFloat) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}

	var parsed float64
	if err := json.Unmarshal(data, &parsed); err != nil {
		return err
	}
	o.Value = &parsed
	return nil
}

// Cleared reports an explicit null.
func (o OptionalFloat) Cleared() bool {
	return o.Set && o.Value == nil
}
