// Package domain holds the quote entity, the pure merge and conflict rules
// used by synchronization, and the business error taxonomy.
//
// Domain errors represent business-level failures, not transport errors.
// Adapters map them to HTTP statuses or CLI exit messages.
package domain
