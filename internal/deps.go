package internal

import (
	"bitwise74/account-api/config"
	"bitwise74/account-api/internal/service"
	"bitwise74/account-api/internal/store"
	"bitwise74/account-api/pkg/middleware"
	"bitwise74/account-api/pkg/security"
	"bitwise74/account-api/pkg/validators"
)

// Deps holds the long lived components shared by every handler. Built once
// at startup and read only afterwards.
type Deps struct {
	Config   *config.Config
	Store    store.Store
	Hasher   *security.Hasher
	Tokens   *security.Issuer
	Accounts *service.Accounts
	Engine   *validators.Engine
	Guards   *middleware.Guards
}

// NewDeps wires the services on top of an open store
func NewDeps(cfg *config.Config, s store.Store) (*Deps, error) {
	h, err := security.NewHasher(cfg.Password.Secret)
	if err != nil {
		return nil, err
	}
	h.Memory = cfg.Password.Memory
	h.Iterations = cfg.Password.Iterations
	h.Parallelism = cfg.Password.Parallelism

	tokens, err := security.NewIssuer(cfg.Tokens)
	if err != nil {
		return nil, err
	}

	engine := validators.NewEngine(cfg.MaxConcurrency)

	return &Deps{
		Config:   cfg,
		Store:    s,
		Hasher:   h,
		Tokens:   tokens,
		Accounts: service.NewAccounts(s, h, tokens),
		Engine:   engine,
		Guards:   middleware.NewGuards(engine, tokens, s),
	}, nil
}
