package models

type Event struct {
	ID          string   `dynamodbav:"id" json:"id"`
	Title       string   `dynamodbav:"title" json:"title"`
	Date        string   `dynamodbav:"date" json:"date"`
	Time        string   `dynamodbav:"time" json:"time"`
	Location    string   `dynamodbav:"location" json:"location"`
	Description string   `dynamodbav:"description" json:"description"`
	CreatedBy   string   `dynamodbav:"created_by" json:"created_by"`
	Attendees   []string `dynamodbav:"attendees" json:"attendees"`
	CreatedAt   int64    `dynamodbav:"created_at" json:"created_at"`
}
