package service

import "errors"

// ErrPublishFailed means the request was not handed to the queue. The pending
// record has been rolled back, so the caller may retry.
var ErrPublishFailed = errors.New("ticket link request could not be queued")
