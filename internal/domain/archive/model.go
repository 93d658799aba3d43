package archive

// Request describes one row move from a live table to its cold-storage
// counterpart.
type Request struct {
	SourceTable  string      `json:"source_table"`
	ArchiveTable string      `json:"archive_table"`
	IDColumn     string      `json:"id_column"`
	IDValue      interface{} `json:"id_value"`
	DryRun       bool        `json:"dry_run"`
	ActorID      string      `json:"actor_id"`
}

// Result reports what the engine found and did. Existed=false means the row
// was not in the source table; that is an answer, not an error. Moved is
// false for dry runs and for rows another caller archived concurrently.
type Result struct {
	Existed bool `json:"existed"`
	Moved   bool `json:"moved"`
}
