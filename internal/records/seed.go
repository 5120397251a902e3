package records

import "context"

// Seed populates the user collection with the default accounts when it
// is empty. Other collections start out empty. Idempotent: a second call
// against a seeded store is a no-op.
func (s *Store) Seed(ctx context.Context) error {
	if len(s.ListUsers(ctx)) > 0 {
		return nil
	}
	defaults := []UserInput{
		{
			Name:           "Admin User",
			Email:          "admin@linoslms.com",
			Role:           RoleAdministrator,
			PasswordSecret: "admin123",
			Active:         true,
		},
		{
			Name:           "John Technician",
			Email:          "tech@linoslms.com",
			Role:           RoleTechnician,
			PasswordSecret: "tech123",
			Active:         true,
		},
	}
	for _, in := range defaults {
		if _, err := s.CreateUser(ctx, in); err != nil {
			return err
		}
	}
	return nil
}
