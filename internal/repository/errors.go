package repository

import "github.com/gooji/deployer/internal/domain"

// ErrNotFound indicates an entity was not located.
var ErrNotFound = domain.ErrNotFound
