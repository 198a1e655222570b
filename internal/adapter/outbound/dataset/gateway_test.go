package dataset

import (
	"context"
	"testing"
)

func openTestGateway(t *testing.T) *Gateway {
	t.Helper()
	g, err := Open(context.Background(), "file::memory:?cache=shared")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = g.Close() })

	if _, err := g.db.ExecContext(context.Background(), `
		CREATE TABLE CARTEIRA_LOGISTICA (ID INTEGER, STATUS TEXT, QTY REAL)
	`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	_, err = g.db.ExecContext(context.Background(), `
		INSERT INTO CARTEIRA_LOGISTICA (ID, STATUS, QTY) VALUES
		(1, 'OPEN', 10.5), (2, 'CLOSED', 3), (3, 'OPEN', NULL)
	`)
	if err != nil {
		t.Fatalf("seed rows: %v", err)
	}
	return g
}

func TestGateway_Fetch_AllRows(t *testing.T) {
	g := openTestGateway(t)
	rows, err := g.Fetch(context.Background(), "carteira-logistica", Query{})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("len(rows) = %d, want 3", len(rows))
	}
}

func TestGateway_Fetch_StatusFilter(t *testing.T) {
	g := openTestGateway(t)
	rows, err := g.Fetch(context.Background(), "carteira-logistica", Query{StatusFilter: "OPEN"})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
}

func TestGateway_Fetch_LimitOffset(t *testing.T) {
	g := openTestGateway(t)
	rows, err := g.Fetch(context.Background(), "carteira-logistica", Query{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("len(rows) = %d, want 1", len(rows))
	}
}

func TestGateway_Fetch_UnknownDataset(t *testing.T) {
	g := openTestGateway(t)
	if _, err := g.Fetch(context.Background(), "not-a-dataset", Query{}); err == nil {
		t.Error("Fetch() error = nil, want error for unknown dataset")
	}
}

func TestIsKnownDataset(t *testing.T) {
	if !IsKnownDataset("carteira-logistica") {
		t.Error("IsKnownDataset(carteira-logistica) = false, want true")
	}
	if IsKnownDataset("not-a-dataset") {
		t.Error("IsKnownDataset(not-a-dataset) = true, want false")
	}
}
