package gsheet

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siteops/sheetsync/engine"
)

// sheetStub serves a minimal values API for the client tests.
type sheetStub struct {
	values   [][]string
	appends  [][]string
	updates  map[string][][]string // range -> values
	failWith int
}

func (s *sheetStub) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.failWith != 0 {
			w.WriteHeader(s.failWith)
			return
		}
		switch {
		case r.Method == http.MethodGet:
			_ = json.NewEncoder(w).Encode(map[string]any{"values": s.values})
		case r.Method == http.MethodPost:
			var body struct {
				Values [][]string `json:"values"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			s.appends = append(s.appends, body.Values...)
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodPut:
			var body struct {
				Values [][]string `json:"values"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			if s.updates == nil {
				s.updates = map[string][][]string{}
			}
			s.updates[r.URL.Path] = body.Values
			w.WriteHeader(http.StatusOK)
		}
	}
}

func newStubClient(t *testing.T, stub *sheetStub) *Client {
	srv := httptest.NewServer(stub.handler(t))
	t.Cleanup(srv.Close)

	c, err := New(Options{
		Endpoint:      srv.URL,
		SpreadsheetID: "sheet-1",
		Range:         "공사 현황!A:AM",
	}, zerolog.Nop())
	require.NoError(t, err)
	return c
}

func TestFetchRows_HeaderBecomesSchemaAndCodelessRowsDrop(t *testing.T) {
	stub := &sheetStub{values: [][]string{
		{engine.ColProjectCode, engine.ColCompany, engine.ColOwner},
		{"G0001-YG", "글로벌", "박용구"},
		{"", "스크래치", ""}, // no code: dropped
		{"P0002-JW", "평택"}, // short row: padded with empties
	}}
	c := newStubClient(t, stub)

	columns, rows, err := c.FetchRows(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{engine.ColProjectCode, engine.ColCompany, engine.ColOwner}, columns)
	require.Len(t, rows, 2)
	assert.Equal(t, "G0001-YG", rows[0].Code())
	assert.Equal(t, "", rows[1].Get(engine.ColOwner))
}

func TestFetchRows_APIFailureUnwrapsToErrFetch(t *testing.T) {
	c := newStubClient(t, &sheetStub{failWith: http.StatusForbidden})

	_, _, err := c.FetchRows(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrFetch))
}

func TestAppendRow_SerializesCanonicalColumnOrder(t *testing.T) {
	stub := &sheetStub{}
	c := newStubClient(t, stub)

	err := c.AppendRow(context.Background(), engine.Row{
		engine.ColProjectCode: "G0003-YG",
		engine.ColCompany:     "글로벌",
	})
	require.NoError(t, err)
	require.Len(t, stub.appends, 1)
	cells := stub.appends[0]
	require.Len(t, cells, len(engine.SheetColumns))
	assert.Equal(t, "G0003-YG", cells[0])
	assert.Equal(t, "글로벌", cells[1])
	assert.Equal(t, "", cells[2])
}

func TestUpdateRow_FindsRowByCode(t *testing.T) {
	stub := &sheetStub{values: [][]string{
		{engine.ColProjectCode},
		{"G0001-YG"},
		{"P0002-JW"},
	}}
	c := newStubClient(t, stub)

	err := c.UpdateRow(context.Background(), "P0002-JW", engine.Row{
		engine.ColProjectCode: "P0002-JW",
		engine.ColAddress:     "평택시",
	})
	require.NoError(t, err)
	require.Len(t, stub.updates, 1)
}

func TestUpdateRow_UnknownCodeUnwrapsToErrWrite(t *testing.T) {
	stub := &sheetStub{values: [][]string{{engine.ColProjectCode}, {"G0001-YG"}}}
	c := newStubClient(t, stub)

	err := c.UpdateRow(context.Background(), "X9999-ZZ", engine.Row{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrWrite))
}
