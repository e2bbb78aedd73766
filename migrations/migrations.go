// Package migrations embeds the SQL migrations for the Postgres side
// tables: the reminder dispatch audit log and the chat dedupe ledger. The
// queue itself lives in DynamoDB and is created by infrastructure, not here.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
