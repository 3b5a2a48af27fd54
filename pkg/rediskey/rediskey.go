package rediskey

import "fmt"

const (
	LockPrefix     = "lock"
	SequencePrefix = "seq"
	RankingPrefix  = "ranking"
)

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// BuildParticipantProjectLockKey returns "lock:participant:{participantID}:project:{projectID}"
func BuildParticipantProjectLockKey(participantID, projectID string) string {
	return NamespaceKey(LockPrefix, fmt.Sprintf("participant:%s:project:%s", participantID, projectID))
}

// BuildSequenceKey returns "seq:{prefix}:{day}"
func BuildSequenceKey(prefix, day string) string {
	return NamespaceKey(SequencePrefix, fmt.Sprintf("%s:%s", prefix, day))
}

// BuildRankingReconcileKey returns "ranking:reconcile:{projectID}"
func BuildRankingReconcileKey(projectID string) string {
	return NamespaceKey(RankingPrefix, "reconcile:"+projectID)
}

// BuildRankingInvalidateChannel returns "ranking:invalidate", the pub/sub
// channel carrying project ids whose cached top-10 is stale.
func BuildRankingInvalidateChannel() string {
	return NamespaceKey(RankingPrefix, "invalidate")
}
