package domain

import "time"

// User is a directory entry for anyone who files, handles or oversees reports.
type User struct {
	ID        string
	Name      string
	Email     string
	Role      Role
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
