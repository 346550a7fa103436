package rpc

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func invalidArgument(err error) error {
	return status.Error(codes.InvalidArgument, err.Error())
}
