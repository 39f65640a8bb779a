/*
Package ledger turns a raw payment-ledger table into a canonical, fully typed
table.

The package is pure: nothing in it performs I/O, holds state between calls or
needs a context. Callers hand it a RawTable and get back either a
NormalizedTable or ErrNoData.

# Pipeline

	RawTable ──MapColumns──▶ MappedTable ──Normalize──▶ *NormalizedTable

MapColumns cleans header text, resolves aliases against a priority-ordered
table and synthesizes any missing monetary column. Normalize parses every
monetary cell, recomputes pending_amount, defaults work_status and derives the
payment year. Process runs both steps.

# Failure model

Bad cells never fail a load. Unparseable amounts become zero and unparseable
dates become "no date". Missing columns and colliding headers are reported as
Advisory values on the result. The only error is ErrNoData, returned for a
table without records.

# Money

Monetary values are shopspring/decimal values, so pending_amount is always
exactly final_amount minus payment_received.
*/
package ledger
