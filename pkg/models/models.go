package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Course is the category label a post is tagged with.
type Course string

const (
	CourseTechnology         Course = "Technology"
	CourseWorkshop           Course = "Workshop"
	CourseSupervisedPractice Course = "Supervised Practice"
)

var courses = []Course{CourseTechnology, CourseWorkshop, CourseSupervisedPractice}

// Courses returns the allowed course values in their canonical order.
func Courses() []Course {
	out := make([]Course, len(courses))
	copy(out, courses)
	return out
}

// CourseList returns the allowed values joined with ", ", for error messages.
func CourseList() string {
	names := make([]string, len(courses))
	for i, c := range courses {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

func (c Course) IsValid() bool {
	for _, v := range courses {
		if c == v {
			return true
		}
	}
	return false
}

// Post is a blog entry. Comments are kept newest-first.
type Post struct {
	ID        primitive.ObjectID `bson:"_id" json:"pid"`
	Title     string             `bson:"title" json:"title"`
	Content   string             `bson:"content" json:"content"`
	Course    Course             `bson:"course" json:"course"`
	Comments  []Comment          `bson:"comments" json:"comments"`
	Date      time.Time          `bson:"date" json:"date"`
	Status    bool               `bson:"status" json:"status"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

type Comment struct {
	Username string    `bson:"username" json:"username"`
	Text     string    `bson:"text" json:"text"`
	Date     time.Time `bson:"date" json:"date"`
}

// NewPost returns a visible post with no comments, stamped with now.
func NewPost(title, content string, course Course, now time.Time) Post {
	return Post{
		ID:        primitive.NewObjectID(),
		Title:     title,
		Content:   content,
		Course:    course,
		Comments:  []Comment{},
		Date:      now,
		Status:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
