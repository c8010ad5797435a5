package domain

// Event bus topics
const (
	// TopicReviewSubmitted carries the reviewed product id (int64)
	TopicReviewSubmitted = "review:submitted"
)
