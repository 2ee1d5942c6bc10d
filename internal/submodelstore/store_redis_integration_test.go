//go:build integration

package submodelstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"twinhub/pkg/domain"
	"twinhub/pkg/platform/sentinel"
	"twinhub/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	rc    *containers.RedisContainer
	store *RedisStore
	ctx   context.Context
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.rc = containers.GetManager().GetRedis(s.T())
	s.store = NewRedis(s.rc.Client)
	s.ctx = context.Background()
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.rc.FlushAll(s.ctx))
}

func (s *RedisStoreSuite) key() string {
	sem, err := domain.ParseSemanticID("urn:samm:io.catenax.part_type_information:1.0.0#PartTypeInformation")
	s.Require().NoError(err)
	return Key(sem, domain.NewGlobalID())
}

func (s *RedisStoreSuite) TestPutGetRoundtrip() {
	key := s.key()
	payload := Payload(`{"manufacturerPartId":"MPN-001"}`)

	s.Require().NoError(s.store.Put(s.ctx, key, payload))

	got, err := s.store.Get(s.ctx, key)
	s.Require().NoError(err)
	s.JSONEq(string(payload), string(got))
}

func (s *RedisStoreSuite) TestPutOverwrites() {
	key := s.key()
	s.Require().NoError(s.store.Put(s.ctx, key, Payload(`{"v":1}`)))
	s.Require().NoError(s.store.Put(s.ctx, key, Payload(`{"v":2}`)))

	got, err := s.store.Get(s.ctx, key)
	s.Require().NoError(err)
	s.JSONEq(`{"v":2}`, string(got))
}

func (s *RedisStoreSuite) TestMissingKey() {
	_, err := s.store.Get(s.ctx, s.key())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestDelete() {
	key := s.key()
	s.Require().NoError(s.store.Put(s.ctx, key, Payload(`{}`)))
	s.Require().NoError(s.store.Delete(s.ctx, key))

	_, err := s.store.Get(s.ctx, key)
	s.ErrorIs(err, sentinel.ErrNotFound)

	s.ErrorIs(s.store.Delete(s.ctx, key), sentinel.ErrNotFound)
}
