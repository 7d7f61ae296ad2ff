package sqstask

// TaskHandle pairs a decoded task with the receipt handle needed to
// acknowledge or release it. The type parameter is the decoded task
// shape, and Task holds the decoded value.
type TaskHandle[T any] struct {
	Task    T
	LeaseID string
}
