// Package db opens pgx connection pools to the registry database.
//
// Connection settings come from the database section of spreg.yaml (see
// FromConfig) and select one of four connectors: standard credentials,
// AWS RDS IAM tokens, Azure Entra ID tokens, or the Google Cloud SQL
// connector with IAM authentication. Token-based connectors fetch a fresh
// token on every connection attempt; all connectors retry transient
// failures with the defaults from package retry.
package db
