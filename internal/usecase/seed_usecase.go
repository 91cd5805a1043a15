package usecase

import "context"

// SeedInput describes the bootstrap super admin. An empty email skips the admin.
type SeedInput struct {
	AdminEmail     string
	AdminPassword  string
	AdminFirstName string
	AdminLastName  string
}

// SeedOutput reports what a seed run wrote.
type SeedOutput struct {
	Permissions  int
	Roles        int
	AdminCreated bool
}

// SeedUsecase installs the system permission and role catalogue. It is idempotent.
type SeedUsecase interface {
	Seed(ctx context.Context, input SeedInput) (*SeedOutput, error)
}
