package taskname

const (
	// Ranking tasks
	RankingReconcile = "ranking:reconcile"

	// Proof tasks
	ProofArchive = "proof:archive"
)
