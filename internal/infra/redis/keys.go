package redis

func aggregateKey(userID string) string {
	return "progress:" + userID + ":aggregate"
}

func historyKey(userID string) string {
	return "progress:" + userID + ":history"
}

func historySessionsKey(userID string) string {
	return "progress:" + userID + ":history:sessions"
}

func checkpointKey(userID string) string {
	return "progress:" + userID + ":checkpoint"
}

func sessionKey(userID string) string {
	return "progress:session:" + userID
}
