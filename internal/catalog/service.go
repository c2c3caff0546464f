package catalog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	productsCacheKey        = "catalog:products"
	shippingMethodsCacheKey = "catalog:shipping_methods"
)

// Service serves the read-only catalog with redis cache-aside. A nil redis
// client disables caching and every call goes straight to Postgres.
type Service struct {
	repo  Repository
	cache *redis.Client
	ttl   time.Duration
}

func NewService(repo Repository, cache *redis.Client, ttl time.Duration) *Service {
	return &Service{repo: repo, cache: cache, ttl: ttl}
}

func (s *Service) ListProducts(ctx context.Context) ([]Product, error) {
	var products []Product
	if s.cacheGet(ctx, productsCacheKey, &products) {
		return products, nil
	}

	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}

	s.cacheSet(ctx, productsCacheKey, products)
	return products, nil
}

func (s *Service) ListShippingMethods(ctx context.Context) ([]ShippingMethod, error) {
	var methods []ShippingMethod
	if s.cacheGet(ctx, shippingMethodsCacheKey, &methods) {
		return methods, nil
	}

	methods, err := s.repo.ListShippingMethods(ctx)
	if err != nil {
		return nil, err
	}

	s.cacheSet(ctx, shippingMethodsCacheKey, methods)
	return methods, nil
}

// InvalidateProducts drops the cached listing; reconciliation calls this
// after stock decrements so shoppers see fresh quantities.
func (s *Service) InvalidateProducts(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, productsCacheKey).Err(); err != nil {
		log.Warn().Err(err).Msg("catalog: failed to invalidate products cache")
	}
}

func (s *Service) cacheGet(ctx context.Context, key string, dest any) bool {
	if s.cache == nil {
		return false
	}
	data, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Warn().Err(err).Str("key", key).Msg("catalog: cache read failed")
		}
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("catalog: cache entry corrupt, ignoring")
		return false
	}
	return true
}

func (s *Service) cacheSet(ctx context.Context, key string, value any) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("catalog: failed to marshal cache entry")
		return
	}
	if err := s.cache.Set(ctx, key, data, s.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("catalog: cache write failed")
	}
}
