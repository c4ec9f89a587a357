package service

import (
	"context"
	"log/slog"

	"vlogy/internal/blob"
	"vlogy/internal/middleware"
	"vlogy/internal/models"
	"vlogy/internal/repository"
)

// FeedService lists and publishes posts.
type FeedService struct {
	posts    repository.PostRepository
	uploader blob.Uploader
}

// PublishInput is an upload as received from the browser. Content is nil when
// the form carried no file.
type PublishInput struct {
	Title       string
	Desc        string
	Filename    string
	ContentType string
	Content     []byte
	HasFile     bool
}

func NewFeedService(posts repository.PostRepository, uploader blob.Uploader) *FeedService {
	return &FeedService{posts: posts, uploader: uploader}
}

// List returns every post in store order.
func (s *FeedService) List(ctx context.Context) ([]*models.Post, error) {
	return s.posts.List(ctx)
}

// Publish stores the image and then records the post. Nothing is written to
// the database unless the upload succeeded.
func (s *FeedService) Publish(ctx context.Context, in PublishInput) (*models.Post, models.Outcome) {
	if !in.HasFile {
		return nil, s.record(ctx, models.OutcomeNoFile, nil)
	}

	obj, err := s.uploader.Put(ctx, in.Filename, in.Content, blob.PutOptions{
		Access:      blob.AccessPublic,
		ContentType: in.ContentType,
	})
	if err != nil {
		return nil, s.record(ctx, models.OutcomeUpstreamUnavailable, err)
	}

	post := &models.Post{
		Title:    in.Title,
		Filename: obj.URL,
		Desc:     in.Desc,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, s.record(ctx, models.OutcomePersistFailed, err)
	}

	middleware.Logger.InfoContext(ctx, "post published",
		slog.Uint64("post_id", uint64(post.ID)),
		slog.String("url", obj.URL),
	)
	return post, s.record(ctx, models.OutcomeSuccess, nil)
}

// Reject records an upload whose form could not be read.
func (s *FeedService) Reject(ctx context.Context, err error) models.Outcome {
	return s.record(ctx, models.OutcomeInvalidRequest, err)
}

func (s *FeedService) record(ctx context.Context, outcome models.Outcome, err error) models.Outcome {
	middleware.UploadOutcomes.WithLabelValues(outcome.String()).Inc()
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "upload failed",
			slog.String("outcome", outcome.String()),
			slog.String("error", err.Error()),
		)
	}
	return outcome
}
