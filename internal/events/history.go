package events

import (
	"encoding/json"
	"maps"
	"strings"
)

// BuildHistory replays events oldest first, accumulating a request snapshot,
// and returns one entry per visible event, newest first. Checkout and checkin
// are workflow noise and are skipped, as are failed operations.
func BuildHistory(list []*Event) []HistoryEntry {
	var (
		snap     HistoryEntry
		previous *Event
		out      []HistoryEntry
	)
	for _, e := range list {
		if e.Outcome == OutcomeFailure || e.Action == ActionCheckout || e.Action == ActionCheckin {
			continue
		}
		before := snap
		snap.ID = e.ID
		snap.Comment = nil

		// an edit changes details, never the state
		if e.Action != ActionEdit {
			snap.StateCd = e.StateCd
			if snap.StateCd == "CONDITIONAL" && (snap.ConsentFlag == nil || *snap.ConsentFlag == "N") {
				snap.ConsentFlag = strPtr("Y")
			}
			if snap.StateCd != "CONDITIONAL" {
				snap.ConsentFlag = strPtr("N")
				snap.ConsentDate = nil
			}
		}

		data := decode(e.Data)
		if data != nil {
			if e.Action == ActionNotification {
				readNotification(&snap, data)
			} else {
				readSnapshot(&snap, data)
			}
		}

		snap.EventDate = e.EventDate
		snap.UserName = e.Username
		snap.UserAction = userAction(e, previous, &before, &snap, data)

		entry := snap
		entry.Names = cloneNames(snap.Names)
		out = append([]HistoryEntry{entry}, out...)
		previous = e
	}
	return out
}

func userAction(e, previous *Event, before, snap *HistoryEntry, data map[string]any) string {
	action := e.Action
	state := e.StateCd
	raw := string(e.Data)
	decided := state == "APPROVED" || state == "REJECTED" || state == "CONDITIONAL"

	label := action
	switch {
	case action == ActionEdit:
		label = "Edit NR Details (Name Request)"
	case action == ActionPatch && state == "INPROGRESS":
		label = "Load NR"
	case action == ActionPatch && state == "HOLD":
		label = "Hold Request"
	case action == ActionPatch && decided:
		label = "Decision"
	case action == ActionPut && state == "DRAFT":
		label = "Edit NR Details (NameX)"
	case action == ActionPut && decided:
		label = "Edit NR Details after Completion"
	case action == ActionPut && state == "INPROGRESS" && strings.Contains(raw, "additional"):
		label = "Edit NR Details (NameX)"
		if previous != nil {
			switch previous.StateCd {
			case "APPROVED", "REJECTED", "CONDITIONAL":
				snap.ExpirationDate = nil
				label = "Re-Open"
				if before.Furnished != nil && *before.Furnished == "Y" {
					label = "Reset"
				}
			}
		}
	case action == ActionPut && state == "INPROGRESS":
		label = "Complete the Name Choice"
		if strings.Contains(raw, `"state":"NE"`) {
			label = "Undo Decision"
		}
	case action == ActionGet && state == "INPROGRESS":
		label = "Get Next NR"
	}

	if action == ActionPost {
		if c, ok := data["comment"].(string); ok {
			label = "Staff Comment"
			snap.Comment = &c
		}
	}
	if state == "CANCELLED" && (action == ActionPatch || action == ActionPut) {
		label = "Cancelled in Namex"
	}
	if action == ActionPost && previous == nil && (state == "DRAFT" || state == "PENDING_PAYMENT") {
		label = "Created NRL"
		snap.StateCd = "PENDING_PAYMENT"
	}
	switch {
	case strings.Contains(action, "[rollback]"):
		label = "UI Error - NR Rolled Back"
	case strings.Contains(action, "[cancel]"):
		label = "Cancelled in Name Request"
	case strings.Contains(action, "request-refund"):
		label = "Refund Requested"
	case action == ActionResend:
		label = "Resend Notification"
	case action == ActionNotification:
		label = "Notification Sent"
	}
	return label
}

func readNotification(snap *HistoryEntry, data map[string]any) {
	snap.Email = stringField(data, "email")
	snap.Option = stringField(data, "option")
	snap.ResendDate = stringField(data, "resend_date")
}

// readSnapshot folds an event payload into the running snapshot. Name
// payloads replace the matching choice; a consumption stamps the corp number
// on consumable names; anything else overwrites the known header keys.
func readSnapshot(snap *HistoryEntry, data map[string]any) {
	if _, hasChoice := data["choice"]; hasChoice {
		if _, hasName := data["name"]; hasName {
			for i, n := range snap.Names {
				if n["choice"] == data["choice"] {
					snap.Names[i] = data
					return
				}
			}
			snap.Names = append(snap.Names, data)
			return
		}
	}
	if st, _ := data["state"].(string); st == "CONSUMED" {
		for _, n := range snap.Names {
			if s, _ := n["state"].(string); s == "APPROVED" || s == "CONDITION" {
				n["corpNum"] = data["corpNum"]
			}
		}
		return
	}

	setIfPresent(data, "additionalInfo", &snap.AdditionalInfo)
	setIfPresent(data, "consent_dt", &snap.ConsentDate)
	setIfPresent(data, "consentFlag", &snap.ConsentFlag)
	setIfPresent(data, "corpNum", &snap.CorpNum)
	setIfPresent(data, "expirationDate", &snap.ExpirationDate)
	setIfPresent(data, "furnished", &snap.Furnished)
	setIfPresent(data, "priorityCd", &snap.PriorityCd)
	setIfPresent(data, "requestTypeCd", &snap.RequestTypeCd)
	setIfPresent(data, "request_action_cd", &snap.RequestActionCd)
	if names, ok := data["names"].([]any); ok {
		snap.Names = snap.Names[:0]
		for _, n := range names {
			if m, ok := n.(map[string]any); ok {
				snap.Names = append(snap.Names, m)
			}
		}
	}
	if _, ok := data["requestTypeCd"]; !ok {
		if et := stringField(data, "entity_type_cd"); et != nil {
			snap.RequestTypeCd = et
		}
	}
}

func setIfPresent(data map[string]any, key string, dst **string) {
	if _, ok := data[key]; ok {
		*dst = stringField(data, key)
	}
}

func stringField(data map[string]any, key string) *string {
	switch v := data[key].(type) {
	case string:
		return &v
	case nil:
		return nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		s := string(b)
		return &s
	}
}

func decode(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

func cloneNames(names []map[string]any) []map[string]any {
	out := make([]map[string]any, len(names))
	for i, n := range names {
		out[i] = maps.Clone(n)
	}
	return out
}

func strPtr(s string) *string { return &s }
