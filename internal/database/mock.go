package database

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockPomoRepository struct {
	mock.Mock
}

func (m *MockPomoRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
func (m *MockPomoRepository) CreateRoom(ctx context.Context, params CreateRoomParams) (Room, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockPomoRepository) GetRoomByName(ctx context.Context, name string) (Room, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockPomoRepository) GetRoomByExternalId(ctx context.Context, externalId string) (Room, error) {
	args := m.Called(ctx, externalId)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockPomoRepository) CreateTimer(ctx context.Context, timer Timer) (Timer, error) {
	args := m.Called(ctx, timer)
	return args.Get(0).(Timer), args.Error(1)
}
func (m *MockPomoRepository) UpdateTimer(ctx context.Context, timer Timer) (Timer, error) {
	args := m.Called(ctx, timer)
	return args.Get(0).(Timer), args.Error(1)
}
func (m *MockPomoRepository) GetLatestTimerByRoomId(ctx context.Context, roomId int) (Timer, error) {
	args := m.Called(ctx, roomId)
	return args.Get(0).(Timer), args.Error(1)
}
