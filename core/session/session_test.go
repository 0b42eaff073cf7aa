package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/voltgrid/csms/core/auth"
	"github.com/voltgrid/csms/core/ocpp"
	"github.com/voltgrid/csms/core/status"
)

type nopLog struct{}

func (nopLog) Debugf(string, ...any)         {}
func (nopLog) Debugw(string, map[string]any) {}
func (nopLog) Infof(string, ...any)          {}
func (nopLog) Warnf(string, ...any)          {}
func (nopLog) Errorf(string, ...any)         {}

func testConfig(st status.Store) Config {
	return Config{
		Store:             st,
		Authorizer:        auth.AllowAll{},
		TxIDs:             NewTxCounter(),
		Log:               nopLog{},
		HeartbeatInterval: 10 * time.Second,
	}
}

func mustResult[T any](t *testing.T, got any, err error) T {
	t.Helper()
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	out, ok := got.(T)
	if !ok {
		t.Fatalf("unexpected result type %T", got)
	}
	return out
}

// checkInvariant asserts status == Charging exactly when a transaction is
// active.
func checkInvariant(t *testing.T, s *Session) {
	t.Helper()
	snap := s.Snapshot()
	charging := snap.Status == ocpp.StatusCharging
	hasTx := snap.Transaction != nil
	if charging != hasTx {
		t.Fatalf("invariant broken: status=%s transaction=%v", snap.Status, snap.Transaction)
	}
}

func startPayload(tag string) json.RawMessage {
	return json.RawMessage(`{"connectorId":1,"idTag":"` + tag + `","meterStart":0,"timestamp":"2024-05-01T10:00:00Z"}`)
}

func startCharging(t *testing.T, s *Session, tag string) int {
	t.Helper()
	got, err := HandleStartTransaction(context.Background(), s, startPayload(tag))
	res := mustResult[ocpp.StartTransactionResponse](t, got, err)
	if res.IdTagInfo.Status != ocpp.AuthorizationAccepted {
		t.Fatalf("start not accepted: %s", res.IdTagInfo.Status)
	}
	AfterStartTransaction(context.Background(), s, nil)
	return res.TransactionID
}

func TestSession_InitialStateProjected(t *testing.T) {
	st := status.NewMemoryStore()
	s := New("CP1", testConfig(st))
	if got := s.Snapshot().Status; got != ocpp.StatusAvailable {
		t.Fatalf("initial status %s", got)
	}
	stored, ok, _ := st.Get("CP1")
	if !ok || stored != ocpp.StatusAvailable {
		t.Fatalf("store not projected: %v %v", stored, ok)
	}
	checkInvariant(t, s)
}

func TestSession_StartTransaction(t *testing.T) {
	st := status.NewMemoryStore()
	s := New("CP1", testConfig(st))

	got, err := HandleStartTransaction(context.Background(), s, startPayload("TAG1"))
	res := mustResult[ocpp.StartTransactionResponse](t, got, err)
	if res.IdTagInfo.Status != ocpp.AuthorizationAccepted {
		t.Fatalf("expected Accepted, got %s", res.IdTagInfo.Status)
	}
	if res.TransactionID == 0 {
		t.Fatal("no transaction id allocated")
	}
	// The Charging transition only commits once the reply is on the wire.
	if got := s.Snapshot().Status; got != ocpp.StatusAvailable {
		t.Fatalf("premature transition to %s", got)
	}

	AfterStartTransaction(context.Background(), s, nil)
	snap := s.Snapshot()
	if snap.Status != ocpp.StatusCharging {
		t.Fatalf("expected Charging, got %s", snap.Status)
	}
	if snap.Transaction == nil || snap.Transaction.ID != res.TransactionID {
		t.Fatalf("active transaction mismatch: %#v", snap.Transaction)
	}
	stored, _, _ := st.Get("CP1")
	if stored != ocpp.StatusCharging {
		t.Fatalf("store not updated: %s", stored)
	}
	checkInvariant(t, s)
}

func TestSession_StartWhileCharging(t *testing.T) {
	s := New("CP1", testConfig(status.NewMemoryStore()))
	first := startCharging(t, s, "TAG1")

	got, err := HandleStartTransaction(context.Background(), s, startPayload("TAG2"))
	res := mustResult[ocpp.StartTransactionResponse](t, got, err)
	if res.IdTagInfo.Status != ocpp.AuthorizationBlocked {
		t.Fatalf("expected Blocked, got %s", res.IdTagInfo.Status)
	}
	AfterStartTransaction(context.Background(), s, nil)

	snap := s.Snapshot()
	if snap.Transaction == nil || snap.Transaction.ID != first {
		t.Fatalf("active transaction changed: %#v", snap.Transaction)
	}
	if snap.Status != ocpp.StatusCharging {
		t.Fatalf("status changed to %s", snap.Status)
	}
	checkInvariant(t, s)
}

func TestSession_StopTransaction(t *testing.T) {
	st := status.NewMemoryStore()
	s := New("CP1", testConfig(st))
	txID := startCharging(t, s, "TAG1")

	payload, _ := json.Marshal(ocpp.StopTransactionRequest{TransactionID: txID, MeterStop: 120, Timestamp: ocpp.Now()})
	got, err := HandleStopTransaction(context.Background(), s, payload)
	res := mustResult[ocpp.StopTransactionResponse](t, got, err)
	if res.IdTagInfo.Status != ocpp.AuthorizationAccepted {
		t.Fatalf("expected Accepted, got %s", res.IdTagInfo.Status)
	}
	snap := s.Snapshot()
	if snap.Status != ocpp.StatusAvailable || snap.Transaction != nil {
		t.Fatalf("state not cleared: %#v", snap)
	}
	stored, _, _ := st.Get("CP1")
	if stored != ocpp.StatusAvailable {
		t.Fatalf("store not updated: %s", stored)
	}
	checkInvariant(t, s)
}

func TestSession_StopWithWrongID(t *testing.T) {
	st := status.NewMemoryStore()
	s := New("CP1", testConfig(st))
	txID := startCharging(t, s, "TAG1")

	payload, _ := json.Marshal(ocpp.StopTransactionRequest{TransactionID: txID + 999, Timestamp: ocpp.Now()})
	got, err := HandleStopTransaction(context.Background(), s, payload)
	res := mustResult[ocpp.StopTransactionResponse](t, got, err)
	if res.IdTagInfo.Status != ocpp.AuthorizationInvalid {
		t.Fatalf("expected Invalid, got %s", res.IdTagInfo.Status)
	}
	snap := s.Snapshot()
	if snap.Status != ocpp.StatusCharging || snap.Transaction == nil || snap.Transaction.ID != txID {
		t.Fatalf("state changed on mismatch: %#v", snap)
	}
	stored, _, _ := st.Get("CP1")
	if stored != ocpp.StatusCharging {
		t.Fatalf("store changed on mismatch: %s", stored)
	}
	checkInvariant(t, s)
}

func TestSession_FreshTransactionIDsAcrossStations(t *testing.T) {
	cfg := testConfig(status.NewMemoryStore())
	seen := map[int]string{}
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, id := range []string{"CP1", "CP2", "CP3", "CP4"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			s := New(id, cfg)
			txID := startCharging(t, s, "TAG-"+id)
			mu.Lock()
			defer mu.Unlock()
			if other, dup := seen[txID]; dup {
				t.Errorf("transaction id %d reused by %s and %s", txID, other, id)
			}
			seen[txID] = id
		}(id)
	}
	wg.Wait()
}

func TestSession_BootAndHeartbeat(t *testing.T) {
	s := New("CP1", testConfig(status.NewMemoryStore()))

	gotBoot, err := HandleBootNotification(context.Background(), s,
		json.RawMessage(`{"chargePointVendor":"VendorX","chargePointModel":"ModelY"}`))
	boot := mustResult[ocpp.BootNotificationResponse](t, gotBoot, err)
	if boot.Status != ocpp.RegistrationAccepted {
		t.Fatalf("boot status %s", boot.Status)
	}
	if boot.Interval != 10 {
		t.Fatalf("boot interval %d", boot.Interval)
	}

	gotHB, err := HandleHeartbeat(context.Background(), s, nil)
	hb := mustResult[ocpp.HeartbeatResponse](t, gotHB, err)
	if time.Since(hb.CurrentTime.Time) > time.Minute {
		t.Fatalf("stale heartbeat time %v", hb.CurrentTime)
	}
	// Boot never gates the state machine.
	checkInvariant(t, s)
}

func TestSession_AuthorizeConsultsPolicy(t *testing.T) {
	cfg := testConfig(status.NewMemoryStore())
	cfg.Authorizer = auth.NewAllowlist([]string{"GOOD"})
	s := New("CP1", cfg)

	got, err := HandleAuthorize(context.Background(), s, json.RawMessage(`{"idTag":"GOOD"}`))
	res := mustResult[ocpp.AuthorizeResponse](t, got, err)
	if res.IdTagInfo.Status != ocpp.AuthorizationAccepted {
		t.Fatalf("expected Accepted, got %s", res.IdTagInfo.Status)
	}
	got, err = HandleAuthorize(context.Background(), s, json.RawMessage(`{"idTag":"BAD"}`))
	res = mustResult[ocpp.AuthorizeResponse](t, got, err)
	if res.IdTagInfo.Status != ocpp.AuthorizationInvalid {
		t.Fatalf("expected Invalid, got %s", res.IdTagInfo.Status)
	}
}

func TestSession_ValidationErrors(t *testing.T) {
	s := New("CP1", testConfig(status.NewMemoryStore()))
	cases := []struct {
		name    string
		handler func(context.Context, *Session, json.RawMessage) (any, error)
		payload string
	}{
		{"authorize missing tag", HandleAuthorize, `{}`},
		{"start bad connector", HandleStartTransaction, `{"connectorId":0,"idTag":"T"}`},
		{"start missing tag", HandleStartTransaction, `{"connectorId":1}`},
		{"garbage payload", HandleStopTransaction, `"nope"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.handler(context.Background(), s, json.RawMessage(tc.payload))
			var verr *ocpp.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestSession_DataTransfer(t *testing.T) {
	s := New("CP1", testConfig(status.NewMemoryStore()))
	got, err := HandleDataTransfer(context.Background(), s,
		json.RawMessage(`{"vendorId":"acme","messageId":"m1","data":"x"}`))
	res := mustResult[ocpp.DataTransferResponse](t, got, err)
	if res.Status != ocpp.DataTransferAccepted {
		t.Fatalf("expected Accepted, got %s", res.Status)
	}
	got, err = HandleDataTransfer(context.Background(), s, json.RawMessage(`{}`))
	res = mustResult[ocpp.DataTransferResponse](t, got, err)
	if res.Status != ocpp.DataTransferRejected {
		t.Fatalf("expected Rejected for missing vendor, got %s", res.Status)
	}
}

// flakyStore fails Set until unblocked, to show in-memory state stays
// authoritative while persistence is down.
type flakyStore struct {
	*status.MemoryStore
	mu   sync.Mutex
	fail bool
}

func (f *flakyStore) Set(id string, st ocpp.ChargePointStatus) error {
	f.mu.Lock()
	failing := f.fail
	f.mu.Unlock()
	if failing {
		return errors.New("store unavailable")
	}
	return f.MemoryStore.Set(id, st)
}

func TestSession_StoreFailureKeepsSessionAuthoritative(t *testing.T) {
	fs := &flakyStore{MemoryStore: status.NewMemoryStore()}
	s := New("CP1", testConfig(fs))

	fs.mu.Lock()
	fs.fail = true
	fs.mu.Unlock()

	txID := startCharging(t, s, "TAG1")
	snap := s.Snapshot()
	if snap.Status != ocpp.StatusCharging || snap.Transaction.ID != txID {
		t.Fatalf("session state lost on store failure: %#v", snap)
	}
	checkInvariant(t, s)
}
