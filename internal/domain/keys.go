package domain

// KeyPrefix namespaces every patdex key in the shared store. The ingestion
// pipeline writes patient and record hashes under the same prefix.
const KeyPrefix = "patdex:"
