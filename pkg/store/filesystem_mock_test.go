package store

import "github.com/stretchr/testify/mock"

type fileManagementMock struct {
	mock.Mock
}

func (fm *fileManagementMock) readSnapshotFile(filepath string) ([]byte, error) {
	args := fm.Called(filepath)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (fm *fileManagementMock) writeSnapshotFile(filepath string, data []byte) error {
	args := fm.Called(filepath, data)
	return args.Error(0)
}
