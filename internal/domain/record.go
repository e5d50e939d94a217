package domain

import "time"

// Record is a loosely typed document as exchanged with importers and
// exporters. Keys follow the public JSON names (camelCase).
type Record map[string]any

// now is swapped in tests.
var now = func() time.Time { return time.Now().UTC() }

// UserFromRecord builds a User from a raw record. Missing or mistyped fields
// fall back to defaults: displayName to the username, counters to zero,
// timestamps to the current time. Values that are present are kept as is.
func UserFromRecord(r Record) User {
	u := User{
		ID:           str(r, "id"),
		Email:        str(r, "email"),
		Username:     str(r, "username"),
		IsPremium:    boolean(r, "isPremium"),
		MessageCount: integer(r, "messageCount"),
		CreatedAt:    timestamp(r, "createdAt"),
		UpdatedAt:    timestamp(r, "updatedAt"),
	}
	if v, ok := r["displayName"].(string); ok {
		u.DisplayName = v
	} else {
		u.DisplayName = u.Username
	}
	if u.MessageCount < 0 {
		u.MessageCount = 0
	}
	if lc, ok := asRecord(r["linkConfig"]); ok {
		tok := str(lc, "token")
		exp, hasExp := optTime(lc, "expiresAt")
		if tok != "" && hasExp {
			created, _ := optTime(lc, "createdAt")
			u.SetLink(&LinkConfig{Token: tok, ExpiresAt: exp, CreatedAt: created})
		}
	}
	return u
}

// Record serializes u back into a raw record.
func (u User) Record() Record {
	r := Record{
		"id":           u.ID,
		"email":        u.Email,
		"username":     u.Username,
		"displayName":  u.DisplayName,
		"isPremium":    u.IsPremium,
		"messageCount": u.MessageCount,
		"linkConfig":   nil,
		"createdAt":    u.CreatedAt,
		"updatedAt":    u.UpdatedAt,
	}
	if lc := u.Link(); lc != nil {
		r["linkConfig"] = Record{
			"token":     lc.Token,
			"expiresAt": lc.ExpiresAt,
			"createdAt": lc.CreatedAt,
		}
	}
	return r
}

// MessageFromRecord builds a Message from a raw record. A missing timestamp
// defaults to now and a missing read flag to false.
func MessageFromRecord(r Record) Message {
	return Message{
		ID:              str(r, "id"),
		RecipientUserID: str(r, "recipientUserId"),
		Text:            str(r, "text"),
		Timestamp:       timestamp(r, "timestamp"),
		Read:            boolean(r, "read"),
	}
}

// Record serializes m back into a raw record.
func (m Message) Record() Record {
	return Record{
		"id":              m.ID,
		"recipientUserId": m.RecipientUserID,
		"text":            m.Text,
		"timestamp":       m.Timestamp,
		"read":            m.Read,
	}
}

func str(r Record, k string) string {
	s, _ := r[k].(string)
	return s
}

func boolean(r Record, k string) bool {
	b, _ := r[k].(bool)
	return b
}

// integer accepts the numeric shapes JSON decoders and callers produce.
func integer(r Record, k string) int {
	switch v := r[k].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func timestamp(r Record, k string) time.Time {
	if t, ok := optTime(r, k); ok {
		return t
	}
	return now()
}

// optTime reads a time.Time or an RFC 3339 string.
func optTime(r Record, k string) (time.Time, bool) {
	switch v := r[k].(type) {
	case time.Time:
		return v, true
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func asRecord(v any) (Record, bool) {
	switch m := v.(type) {
	case Record:
		return m, true
	case map[string]any:
		return Record(m), true
	}
	return nil, false
}
