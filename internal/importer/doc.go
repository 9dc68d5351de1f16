// Package importer applies SAML metadata documents to the registry.
//
// Each EntityDescriptor of a document is parsed with the metadata package
// and written in its own registry transaction:
//
//   - a new entity ID registers a new service provider
//   - an existing entity ID is skipped unless Overwrite is set, in which
//     case the metadata fields go through registry.Txn.Update so the
//     history rule applies
//   - certificates, endpoints, contacts and attributes are added when they
//     do not duplicate an active child; imports never remove children
//
// With Validate set the imported version and its pending children are
// validated in the same transaction. Importing the same document twice
// leaves the store unchanged the second time.
package importer
