package activity

import (
	"encoding/json"
	"fmt"
)

const (
	maxIdentifierLength = 64
	maxActionLength     = 64
	maxDetailsBytes     = 8 * 1024
)

// ValidateEvent rejects stream payloads that cannot be stored.
func ValidateEvent(ev Event) error {
	switch {
	case ev.CompanyID == "":
		return fmt.Errorf("company id is required")
	case ev.UserID == "":
		return fmt.Errorf("user id is required")
	case ev.EntityType == "":
		return fmt.Errorf("entity type is required")
	case ev.EntityID == "":
		return fmt.Errorf("entity id is required")
	case ev.Action == "":
		return fmt.Errorf("action is required")
	case ev.OccurredAt <= 0:
		return fmt.Errorf("occurred_at must be set")
	}

	for name, value := range map[string]string{
		"company id":  ev.CompanyID,
		"user id":     ev.UserID,
		"entity type": ev.EntityType,
		"entity id":   ev.EntityID,
	} {
		if len(value) > maxIdentifierLength {
			return fmt.Errorf("%s too long", name)
		}
	}
	if len(ev.Action) > maxActionLength {
		return fmt.Errorf("action too long")
	}

	if len(ev.Details) > 0 {
		if len(ev.Details) > maxDetailsBytes {
			return fmt.Errorf("details exceed %d bytes", maxDetailsBytes)
		}
		var obj map[string]any
		if err := json.Unmarshal(ev.Details, &obj); err != nil {
			return fmt.Errorf("details must be a JSON object")
		}
	}
	return nil
}
