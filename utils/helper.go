package utils

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/bsm/redislock"
	"github.com/go-playground/validator/v10"
	"github.com/mmdatafocus/beergame_backend/config"
)

// Game codes avoid ambiguous characters (no I/O/0/1) so they survive being
// read out loud between players.
const gameCodeCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const GameCodeLength = 6

func GenerateGameCode() string {
	b := make([]byte, GameCodeLength)
	for i := range b {
		b[i] = gameCodeCharset[rand.Intn(len(gameCodeCharset))]
	}
	return string(b)
}

// ObtainGameLock obtains the best-effort redis lock for a game. Mutual
// exclusion does not depend on it (the persisted is_settling flag is
// authoritative); it only shortcuts redundant settlement attempts before they
// touch MySQL. Caller must Release the returned lock.
func ObtainGameLock(ctx context.Context, gameId string, lockType string, moduleName string, functionName string) (*redislock.Lock, error) {
	logger := config.GetLogger()
	locker := config.GetRedisLock()
	if locker == nil {
		// Avoid nil-pointer panics when Redis lock isn't initialized yet.
		config.LogError(logger, moduleName, functionName, "Redis lock not initialized", gameId, errors.New("redis lock is nil"))
		return nil, errors.New("service not ready (redis lock not initialized)")
	}
	lockKey := fmt.Sprintf("%s:%s", lockType, gameId)
	lock, err := locker.Obtain(ctx, lockKey, 30*time.Second, nil)
	if err == redislock.ErrNotObtained {
		config.LogError(logger, moduleName, functionName, "Could not obtain lock for game", gameId, err)
		return nil, redislock.ErrNotObtained
	} else if err != nil {
		config.LogError(logger, moduleName, functionName, "Error obtaining lock for game", gameId, err)
		return nil, err
	}
	return lock, nil
}

func ProcessValidationErrors(err error) map[string]string {

	validationErrors := err.(validator.ValidationErrors)

	errorResponse := make(map[string]string)

	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = ve.Tag()
	}

	return errorResponse
}

func NewTrue() *bool {
	b := true
	return &b
}

func NewFalse() *bool {
	b := false
	return &b
}

func NewInt(n int) *int {
	return &n
}
