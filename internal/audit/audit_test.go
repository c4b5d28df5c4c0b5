package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSink(t *testing.T) (*Sink, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &Sink{db: db}, mock
}

func TestLogInsertsRow(t *testing.T) {
	sink, mock := newTestSink(t)

	mock.ExpectExec(`INSERT INTO query_log`).
		WithArgs(sqlmock.AnyArg(), "www.example.com", "A", "127.0.0.1", uint8(0), "recursive", 2, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	sink.Log(context.Background(), QueryLogEntry{
		Name:       "www.example.com",
		Type:       "A",
		ClientAddr: "127.0.0.1",
		RCode:      0,
		Outcome:    "recursive",
		Hops:       2,
		At:         time.Now(),
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogSwallowsWriteFailure(t *testing.T) {
	sink, mock := newTestSink(t)

	mock.ExpectExec(`INSERT INTO query_log`).
		WillReturnError(errors.New("connection reset"))

	assert.NotPanics(t, func() {
		sink.Log(context.Background(), QueryLogEntry{Name: "broken.example.com", Type: "A"})
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogOnNilSinkIsNoop(t *testing.T) {
	var sink *Sink
	assert.NotPanics(t, func() {
		sink.Log(context.Background(), QueryLogEntry{Name: "x"})
	})
}

func TestPingOnNilSinkReturnsError(t *testing.T) {
	var sink *Sink
	assert.Error(t, sink.Ping(context.Background()))
}
