package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
)

func TestNewRedisClient(t *testing.T) {
	client := NewRedisClient("localhost", "6379")
	assert.NotNil(t, client)
}

func TestRedisClient_Claim(t *testing.T) {
	db, mock := redismock.NewClientMock()
	client := &redisClient{client: db, prefix: "idempotency:"}
	ctx := context.TODO()

	// First claim wins
	mock.ExpectSetNX("idempotency:key", 1, time.Hour).SetVal(true)
	ok, err := client.Claim(ctx, "key", time.Hour)
	assert.NoError(t, err)
	assert.True(t, ok)

	// Second claim loses
	mock.ExpectSetNX("idempotency:key", 1, time.Hour).SetVal(false)
	ok, err = client.Claim(ctx, "key", time.Hour)
	assert.NoError(t, err)
	assert.False(t, ok)

	// Error
	mock.ExpectSetNX("idempotency:key", 1, time.Hour).SetErr(errors.New("redis error"))
	_, err = client.Claim(ctx, "key", time.Hour)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "redis setnx failure")

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestRedisClient_Release(t *testing.T) {
	db, mock := redismock.NewClientMock()
	client := &redisClient{client: db, prefix: "idempotency:"}
	ctx := context.TODO()

	mock.ExpectDel("idempotency:key").SetVal(1)
	assert.NoError(t, client.Release(ctx, "key"))

	mock.ExpectDel("idempotency:key").SetErr(errors.New("redis error"))
	err := client.Release(ctx, "key")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "redis del failure")

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}
