package models

import "time"

// UserState keeps the bot conversation position and its scratch data.
// TempData round-trips through JSON, so numeric values may come back
// as float64 and times as RFC3339 strings; the getters normalize that.
type UserState struct {
	UserID      int64
	CurrentStep string
	TempData    map[string]interface{}
}

func (s *UserState) GetInt64(key string) int64 {
	if s.TempData == nil {
		return 0
	}
	val, ok := s.TempData[key]
	if !ok {
		return 0
	}
	switch v := val.(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	case int:
		return int64(v)
	default:
		return 0
	}
}

func (s *UserState) GetFloat64(key string) float64 {
	if s.TempData == nil {
		return 0
	}
	val, ok := s.TempData[key]
	if !ok {
		return 0
	}
	switch v := val.(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	default:
		return 0
	}
}

func (s *UserState) GetString(key string) string {
	if s.TempData == nil {
		return ""
	}
	val, ok := s.TempData[key]
	if !ok {
		return ""
	}
	if str, ok := val.(string); ok {
		return str
	}
	return ""
}

func (s *UserState) GetTime(key string) time.Time {
	if s.TempData == nil {
		return time.Time{}
	}
	val, ok := s.TempData[key]
	if !ok {
		return time.Time{}
	}
	switch v := val.(type) {
	case time.Time:
		return v
	case string:
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			t, err = time.Parse("2006-01-02", v)
			if err != nil {
				return time.Time{}
			}
		}
		return t
	default:
		return time.Time{}
	}
}

// GetInt64Slice reads a list of ids stashed by selection handlers.
func (s *UserState) GetInt64Slice(key string) []int64 {
	if s.TempData == nil {
		return nil
	}
	val, ok := s.TempData[key]
	if !ok {
		return nil
	}
	switch v := val.(type) {
	case []int64:
		return v
	case []interface{}:
		var ids []int64
		for _, raw := range v {
			switch n := raw.(type) {
			case int64:
				ids = append(ids, n)
			case float64:
				ids = append(ids, int64(n))
			case int:
				ids = append(ids, int64(n))
			}
		}
		return ids
	default:
		return nil
	}
}
