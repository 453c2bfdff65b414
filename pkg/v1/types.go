package v1

// Record is one ledger entry: a published release tied to the snapshot hash
// of its engine build.
type Record struct {
	Channel        string `json:"channel"`
	Version        string `json:"version"`
	DartSDKVersion string `json:"dart_sdk_version"`
	ReleaseDate    string `json:"release_date"`
	Hash           string `json:"hash"`
	Engine         string `json:"engine"`
	SnapshotHash   string `json:"snapshot_hash"`
}
