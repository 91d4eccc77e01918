package resource

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/minio/minio-go/v7"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"affiliatehub/pkg/config"
	"affiliatehub/pkg/db/option"
	"affiliatehub/pkg/errutil"
	"affiliatehub/pkg/repository"
	"affiliatehub/pkg/sequence"
)

const downloadURLExpiry = 15 * time.Minute

// ObjectPresigner is the slice of the minio client the service needs.
type ObjectPresigner interface {
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error)
}

type Service struct {
	db     *gorm.DB
	node   *snowflake.Node
	config *config.Config

	presigner ObjectPresigner
	seq       sequence.Generator

	resources repository.Repository[PromoResource]
	articles  repository.Repository[HelpArticle]
}

type ServiceParams struct {
	fx.In
	DB     *gorm.DB
	Node   *snowflake.Node
	Config *config.Config

	Minio    *minio.Client      `optional:"true"`
	Sequence sequence.Generator `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	svc := &Service{
		db:     p.DB,
		node:   p.Node,
		config: p.Config,
		seq:    p.Sequence,

		resources: repository.ProvideStore[PromoResource](p.DB),
		articles:  repository.ProvideStore[HelpArticle](p.DB),
	}
	if p.Minio != nil {
		svc.presigner = p.Minio
	}
	return svc
}

// ListResources returns assets, optionally scoped to one category.
func (s *Service) ListResources(ctx context.Context, category string) ([]*PromoResource, error) {
	return s.resources.Find(ctx, &PromoResource{Category: category},
		option.WithSortBy(option.QuerySortBy{
			SortBy:  "created_at",
			OrderBy: "desc",
			Allow:   map[string]bool{"created_at": true},
		}),
	)
}

// ResourceDownloadURL hands out a short-lived presigned link instead
// of proxying the object through the API.
func (s *Service) ResourceDownloadURL(ctx context.Context, resourceID snowflake.ID) (string, error) {
	res, err := s.resources.FindOne(ctx, &PromoResource{ID: resourceID})
	if err != nil {
		return "", errutil.Internal("could not fetch resource", err)
	}
	if res == nil {
		return "", errutil.NotFound("resource not found", nil)
	}
	if s.presigner == nil {
		return "", errutil.Internal("object storage is not configured", nil)
	}

	presigned, err := s.presigner.PresignedGetObject(ctx, s.config.Minio.BucketName, res.ObjectKey, downloadURLExpiry, nil)
	if err != nil {
		zap.L().Error("failed to presign download",
			zap.String("resource_id", resourceID.String()),
			zap.String("object_key", res.ObjectKey),
			zap.Error(err),
		)
		return "", errutil.Internal("could not generate download link", err)
	}

	return presigned.String(), nil
}

type RegisterResourceParams struct {
	Title       string `json:"title"`
	Category    string `json:"category"`
	ObjectKey   string `json:"object_key"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

// RegisterResource records metadata for an object that already exists
// in the bucket. Uploading bytes through the API is out of scope.
func (s *Service) RegisterResource(ctx context.Context, params RegisterResourceParams) (*PromoResource, error) {
	if strings.TrimSpace(params.Title) == "" {
		return nil, errutil.ValidationFailed("title is required", nil)
	}
	if strings.TrimSpace(params.ObjectKey) == "" {
		return nil, errutil.ValidationFailed("object_key is required", nil)
	}

	res := &PromoResource{
		ID:          s.node.Generate(),
		Code:        s.nextCode(ctx),
		Title:       params.Title,
		Category:    params.Category,
		ObjectKey:   params.ObjectKey,
		ContentType: params.ContentType,
		SizeBytes:   params.SizeBytes,
	}
	if err := s.resources.Create(ctx, res); err != nil {
		return nil, errutil.Internal("could not register resource", err)
	}

	zap.L().Info("resource registered",
		zap.String("code", res.Code),
		zap.String("object_key", res.ObjectKey),
	)
	return res, nil
}

func (s *Service) nextCode(ctx context.Context) string {
	if s.seq != nil {
		if code, err := s.seq.NextResourceCode(ctx); err == nil {
			return code
		}
	}
	return "RES-" + s.node.Generate().String()
}

// ListArticles returns published help pages only.
func (s *Service) ListArticles(ctx context.Context) ([]*HelpArticle, error) {
	return s.articles.Find(ctx, &HelpArticle{Published: true},
		option.WithSortBy(option.QuerySortBy{
			SortBy:  "updated_at",
			OrderBy: "desc",
			Allow:   map[string]bool{"updated_at": true},
		}),
	)
}

func (s *Service) GetArticle(ctx context.Context, slug string) (*HelpArticle, error) {
	article, err := s.articles.FindOne(ctx, &HelpArticle{Slug: slug, Published: true})
	if err != nil {
		return nil, errutil.Internal("could not fetch article", err)
	}
	if article == nil {
		return nil, errutil.NotFound("article not found", nil)
	}
	return article, nil
}
