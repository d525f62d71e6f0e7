package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestIsUniqueViolation(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", ConstraintName: "uq_journal_entries_reference"}
	wrapped := fmt.Errorf("insert entry: %w", dup)

	require.True(t, IsUniqueViolation(wrapped))
	require.True(t, IsUniqueViolation(wrapped, "uq_accounts_company_number", "uq_journal_entries_reference"))
	require.False(t, IsUniqueViolation(wrapped, "uq_accounts_company_number"))
	require.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	require.False(t, IsUniqueViolation(errors.New("23505")))
	require.False(t, IsUniqueViolation(nil))
}

func TestNewRejectsBadDSN(t *testing.T) {
	_, err := New(t.Context(), "postgres://%zz")
	require.ErrorContains(t, err, "platform/db: parse config")
}
