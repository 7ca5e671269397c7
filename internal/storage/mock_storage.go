package storage

import (
	"io"
	"io/fs"
	"os"

	"github.com/stretchr/testify/mock"
)

// MockStorage stands in for Storage in service tests.
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) Save(clientPath string, r io.Reader, limit int64) (int64, error) {
	args := m.Called(clientPath, r, limit)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStorage) Open(clientPath string) (*os.File, fs.FileInfo, error) {
	args := m.Called(clientPath)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*os.File), args.Get(1).(fs.FileInfo), args.Error(2)
}

func (m *MockStorage) Thumbnail(clientPath string, size int) (*os.File, fs.FileInfo, error) {
	args := m.Called(clientPath, size)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*os.File), args.Get(1).(fs.FileInfo), args.Error(2)
}

func (m *MockStorage) Remove(clientPath string) error {
	args := m.Called(clientPath)
	return args.Error(0)
}

func (m *MockStorage) RemoveAll(clientPath string) error {
	args := m.Called(clientPath)
	return args.Error(0)
}
