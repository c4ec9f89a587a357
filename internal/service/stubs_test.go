package service

import (
	"context"

	"vlogy/internal/blob"
	"vlogy/internal/identity"
	"vlogy/internal/models"
)

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	createFn func(context.Context, *models.Post) error
	listFn   func(context.Context) ([]*models.Post, error)
	created  []*models.Post
}

func (s *postRepoStub) Create(ctx context.Context, post *models.Post) error {
	if s.createFn != nil {
		if err := s.createFn(ctx, post); err != nil {
			return err
		}
	}
	post.ID = uint(len(s.created) + 1)
	s.created = append(s.created, post)
	return nil
}

func (s *postRepoStub) List(ctx context.Context) ([]*models.Post, error) {
	if s.listFn != nil {
		return s.listFn(ctx)
	}
	return s.created, nil
}

type uploaderStub struct {
	putFn func(context.Context, string, []byte, blob.PutOptions) (*blob.Object, error)
	calls int
	opts  blob.PutOptions
}

func (u *uploaderStub) Put(ctx context.Context, name string, content []byte, opts blob.PutOptions) (*blob.Object, error) {
	u.calls++
	u.opts = opts
	return u.putFn(ctx, name, content, opts)
}

type generatorStub struct {
	generateFn func(context.Context, string, string) (string, error)
	prompt     string
	model      string
	calls      int
}

func (g *generatorStub) Generate(ctx context.Context, model, prompt string) (string, error) {
	g.calls++
	g.model = model
	g.prompt = prompt
	return g.generateFn(ctx, model, prompt)
}

type identityStub struct {
	authorized bool
	resp       *identity.Response
	err        error
	gets       int
}

func (i *identityStub) Authorized(identity.SessionValues) bool { return i.authorized }

func (i *identityStub) Get(context.Context, identity.SessionValues, string) (*identity.Response, error) {
	i.gets++
	return i.resp, i.err
}

type mapSession map[string]interface{}

func (m mapSession) Get(key string) interface{}      { return m[key] }
func (m mapSession) Set(key string, val interface{}) { m[key] = val }
func (m mapSession) Delete(key string)               { delete(m, key) }
