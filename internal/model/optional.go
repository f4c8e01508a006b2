package model

import (
	"bytes"
	"encoding/json"
)

// OptionalString различает три состояния поля JSON:
// отсутствует (Set=false), null (Set=true, Value=nil) и значение.
type OptionalString struct {
	Set   bool
	Value *string
}

// Some возвращает заданное значение.
func Some(v string) OptionalString {
	return OptionalString{Set: true, Value: &v}
}

// Null возвращает явный null.
func Null() OptionalString {
	return OptionalString{Set: true}
}

// UnmarshalJSON вызывается только для присутствующего ключа.
func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

func (o OptionalString) MarshalJSON() ([]byte, error) {
	if !o.Set || o.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*o.Value)
}
