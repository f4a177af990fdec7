package dynamo

const preferencesSK = "PREFERENCES"

type dynamoPreferences struct {
	PK          string `dynamodbav:"PK"`
	SK          string `dynamodbav:"SK"`
	UserId      string `dynamodbav:"UserId"`
	StorageType string `dynamodbav:"StorageType"`
	Updated     int64  `dynamodbav:"Updated"`
}

func userPK(userId string) string {
	return "USER#" + userId
}
