package store

import "github.com/kvfile/skv/lib/engine"

type storeImpl struct {
	e *engine.Engine
}

// NewStore wraps e with the typed accessor surface.
func NewStore(e *engine.Engine) IStore {
	return &storeImpl{e: e}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) SetBool(key string, value bool) error {
	return s.set(key, encodeBool(value))
}

func (s *storeImpl) GetBool(key string, def bool) (bool, error) {
	raw, ok, err := s.get(key)
	if err != nil || !ok {
		return def, err
	}
	v, ok := decodeBool(raw)
	if !ok {
		return def, NewError(RetCDecodeError, "stored value is not a bool")
	}
	return v, nil
}

func (s *storeImpl) SetInt32(key string, value int32) error {
	return s.set(key, encodeInt64(int64(value)))
}

func (s *storeImpl) GetInt32(key string, def int32) (int32, error) {
	raw, ok, err := s.get(key)
	if err != nil || !ok {
		return def, err
	}
	v, ok := decodeInt64(raw)
	if !ok {
		return def, NewError(RetCDecodeError, "stored value is not an int32")
	}
	return int32(v), nil
}

func (s *storeImpl) SetInt64(key string, value int64) error {
	return s.set(key, encodeInt64(value))
}

func (s *storeImpl) GetInt64(key string, def int64) (int64, error) {
	raw, ok, err := s.get(key)
	if err != nil || !ok {
		return def, err
	}
	v, ok := decodeInt64(raw)
	if !ok {
		return def, NewError(RetCDecodeError, "stored value is not an int64")
	}
	return v, nil
}

func (s *storeImpl) SetFloat32(key string, value float32) error {
	return s.set(key, encodeFloat32(value))
}

func (s *storeImpl) GetFloat32(key string, def float32) (float32, error) {
	raw, ok, err := s.get(key)
	if err != nil || !ok {
		return def, err
	}
	v, ok := decodeFloat32(raw)
	if !ok {
		return def, NewError(RetCDecodeError, "stored value is not a float32")
	}
	return v, nil
}

func (s *storeImpl) SetFloat64(key string, value float64) error {
	return s.set(key, encodeFloat64(value))
}

func (s *storeImpl) GetFloat64(key string, def float64) (float64, error) {
	raw, ok, err := s.get(key)
	if err != nil || !ok {
		return def, err
	}
	v, ok := decodeFloat64(raw)
	if !ok {
		return def, NewError(RetCDecodeError, "stored value is not a float64")
	}
	return v, nil
}

func (s *storeImpl) SetBytes(key string, value []byte) error {
	return s.set(key, value)
}

func (s *storeImpl) GetBytes(key string) ([]byte, bool, error) {
	return s.get(key)
}

func (s *storeImpl) SetString(key string, value string) error {
	return s.set(key, []byte(value))
}

func (s *storeImpl) GetString(key string) (string, bool, error) {
	raw, ok, err := s.get(key)
	if err != nil || !ok {
		return "", ok, err
	}
	return string(raw), true, nil
}

func (s *storeImpl) SetStringSlice(key string, value []string) error {
	return s.set(key, encodeStringSlice(value))
}

func (s *storeImpl) GetStringSlice(key string) ([]string, bool, error) {
	raw, ok, err := s.get(key)
	if err != nil || !ok {
		return nil, ok, err
	}
	v, ok := decodeStringSlice(raw)
	if !ok {
		return nil, false, NewError(RetCDecodeError, "stored value is not a string slice")
	}
	return v, true, nil
}

func (s *storeImpl) Delete(key string) error {
	if err := s.e.Remove(key); err != nil {
		return NewError(RetCInternalError, err.Error())
	}
	return nil
}

func (s *storeImpl) Has(key string) (bool, error) {
	ok, err := s.e.ContainsKey(key)
	if err != nil {
		return false, NewError(RetCInternalError, err.Error())
	}
	return ok, nil
}

func (s *storeImpl) Count() (int, error) {
	n, err := s.e.Count()
	if err != nil {
		return 0, NewError(RetCInternalError, err.Error())
	}
	return n, nil
}

func (s *storeImpl) AllKeys() ([]string, error) {
	keys, err := s.e.AllKeys()
	if err != nil {
		return nil, NewError(RetCInternalError, err.Error())
	}
	return keys, nil
}

func (s *storeImpl) set(key string, encoded []byte) error {
	if key == "" {
		return NewError(RetCInvalidOperation, "key must not be empty")
	}
	if err := s.e.Set(key, encoded); err != nil {
		return NewError(RetCInternalError, err.Error())
	}
	return nil
}

func (s *storeImpl) get(key string) ([]byte, bool, error) {
	v, ok, err := s.e.Get(key)
	if err != nil {
		return nil, false, NewError(RetCInternalError, err.Error())
	}
	return v, ok, nil
}
