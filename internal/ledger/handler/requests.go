package handler

// recordRepetitionRequest is the optional body of POST /ledger/repetitions.
type recordRepetitionRequest struct {
	// Source is the input modality, "manual" or "audio". Defaults to manual.
	Source string `json:"source,omitempty"`
	// DedupKey is a client-generated idempotency key. Retries carrying the
	// same key count once.
	DedupKey string `json:"dedup_key,omitempty"`
}
