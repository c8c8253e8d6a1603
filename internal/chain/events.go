package chain

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stellar/go/xdr"

	"poolScope/internal/model"
)

// maxContractsPerFilter is the server limit on contract ids in one filter.
const maxContractsPerFilter = 5

// EventQuery selects contract events. StartLedger is used only when Cursor
// is empty.
type EventQuery struct {
	StartLedger uint32
	Cursor      string
	ContractIDs []string
	Limit       uint
}

// EventPage is one page of contract events in ledger order.
type EventPage struct {
	Events       []model.ContractEvent
	Cursor       string
	LatestLedger uint32
}

type eventFilter struct {
	Type        string   `json:"type"`
	ContractIDs []string `json:"contractIds,omitempty"`
}

type eventPagination struct {
	Cursor string `json:"cursor,omitempty"`
	Limit  uint   `json:"limit,omitempty"`
}

type getEventsParams struct {
	StartLedger uint32           `json:"startLedger,omitempty"`
	Filters     []eventFilter    `json:"filters"`
	Pagination  *eventPagination `json:"pagination,omitempty"`
}

type eventInfo struct {
	Type        string          `json:"type"`
	Ledger      uint32          `json:"ledger"`
	ContractID  string          `json:"contractId"`
	ID          string          `json:"id"`
	PagingToken string          `json:"pagingToken"`
	Topic       []string        `json:"topic"`
	Value       json.RawMessage `json:"value"`
}

type getEventsResult struct {
	Events       []eventInfo `json:"events"`
	LatestLedger uint32      `json:"latestLedger"`
	Cursor       string      `json:"cursor"`
}

// Events returns one page of contract events matching q.
func (c *Client) Events(ctx context.Context, q EventQuery) (EventPage, error) {
	params := getEventsParams{Filters: contractFilters(q.ContractIDs)}
	if q.Cursor != "" || q.Limit > 0 {
		params.Pagination = &eventPagination{Cursor: q.Cursor, Limit: q.Limit}
	}
	if q.Cursor == "" {
		params.StartLedger = q.StartLedger
	}

	var result getEventsResult
	if err := c.call(ctx, "getEvents", params, &result); err != nil {
		return EventPage{}, err
	}

	page := EventPage{
		Events:       make([]model.ContractEvent, 0, len(result.Events)),
		Cursor:       result.Cursor,
		LatestLedger: result.LatestLedger,
	}
	for _, info := range result.Events {
		event, err := decodeEvent(info)
		if err != nil {
			return EventPage{}, err
		}
		page.Events = append(page.Events, event)
	}
	if page.Cursor == "" && len(result.Events) > 0 {
		last := result.Events[len(result.Events)-1]
		page.Cursor = last.PagingToken
		if page.Cursor == "" {
			page.Cursor = last.ID
		}
	}
	return page, nil
}

func contractFilters(ids []string) []eventFilter {
	if len(ids) == 0 {
		return []eventFilter{{Type: "contract"}}
	}
	filters := make([]eventFilter, 0, (len(ids)+maxContractsPerFilter-1)/maxContractsPerFilter)
	for start := 0; start < len(ids); start += maxContractsPerFilter {
		end := start + maxContractsPerFilter
		if end > len(ids) {
			end = len(ids)
		}
		filters = append(filters, eventFilter{Type: "contract", ContractIDs: ids[start:end]})
	}
	return filters
}

func decodeEvent(info eventInfo) (model.ContractEvent, error) {
	event := model.ContractEvent{
		ID:         info.ID,
		Ledger:     info.Ledger,
		ContractID: info.ContractID,
		Topics:     make([]xdr.ScVal, 0, len(info.Topic)),
	}
	for i, raw := range info.Topic {
		var topic xdr.ScVal
		if err := xdr.SafeUnmarshalBase64(raw, &topic); err != nil {
			return model.ContractEvent{}, fmt.Errorf("decode event %s topic %d: %w", info.ID, i, err)
		}
		event.Topics = append(event.Topics, topic)
	}

	valueXDR, err := eventValueXDR(info.Value)
	if err != nil {
		return model.ContractEvent{}, fmt.Errorf("event %s value: %w", info.ID, err)
	}
	if err := xdr.SafeUnmarshalBase64(valueXDR, &event.Value); err != nil {
		return model.ContractEvent{}, fmt.Errorf("decode event %s value: %w", info.ID, err)
	}
	return event, nil
}

// eventValueXDR accepts both the plain base64 string and the older
// {"xdr": "..."} object form of an event value.
func eventValueXDR(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var obj struct {
		XDR string `json:"xdr"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", err
	}
	return obj.XDR, nil
}
