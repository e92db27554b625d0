package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestOperationName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		tag  pgconn.CommandTag
		sql  string
		want string
	}{
		{"from command tag", pgconn.NewCommandTag("SELECT 3"), "select * from facilities", "SELECT"},
		{"tag beats sql", pgconn.NewCommandTag("INSERT 0 1"), "insert into workers values ($1)", "INSERT"},
		{"falls back to sql", pgconn.CommandTag{}, "update notifications set status = $1", "UPDATE"},
		{"sql with leading space", pgconn.CommandTag{}, "  delete from workers", "DELETE"},
		{"nothing known", pgconn.CommandTag{}, "", "UNKNOWN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := operationName(tt.tag, tt.sql); got != tt.want {
				t.Errorf("operationName = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestQueryObserver_SetAndClear(t *testing.T) {
	var seen []string
	SetQueryObserver(QueryObserverFunc(func(_ context.Context, operation, outcome string, _ time.Duration) {
		seen = append(seen, operation+"/"+outcome)
	}))
	defer SetQueryObserver(nil)

	obs := getQueryObserver()
	if obs == nil {
		t.Fatal("observer not installed")
	}
	obs.ObserveQuery(context.Background(), "SELECT", "ok", time.Millisecond)
	if len(seen) != 1 || seen[0] != "SELECT/ok" {
		t.Errorf("seen = %v", seen)
	}

	SetQueryObserver(nil)
	if getQueryObserver() != nil {
		t.Error("observer not cleared")
	}
}
