package pkg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// TestWithErrChan 测试 WithErrChan 和 ErrChanFromContext 方法
func TestWithErrChan(t *testing.T) {
	errChan := make(chan error, 1)
	ctx := WithErrChan(context.Background(), errChan)

	extracted := ErrChanFromContext(ctx)
	assert.NotNil(t, extracted, "期望从上下文中提取到错误通道")

	extracted <- errors.New("测试错误")
	select {
	case err := <-errChan:
		assert.EqualError(t, err, "测试错误")
	case <-time.After(time.Second):
		t.Fatal("在1秒内没有收到预期的错误")
	}
}

// TestErrChanFromContextWithoutErrChan 测试当上下文中没有错误通道时的情况
func TestErrChanFromContextWithoutErrChan(t *testing.T) {
	assert.Nil(t, ErrChanFromContext(context.Background()))
}

func TestReportErr(t *testing.T) {
	t.Run("通道可写", func(t *testing.T) {
		errChan := make(chan error, 1)
		ctx := WithErrChan(context.Background(), errChan)
		ReportErr(ctx, errors.New("boom"))
		assert.Len(t, errChan, 1)
	})

	t.Run("通道已满时不阻塞", func(t *testing.T) {
		core, logs := observer.New(zap.DebugLevel)
		errChan := make(chan error, 1)
		errChan <- errors.New("first")
		ctx := WithLogger(WithErrChan(context.Background(), errChan), zap.New(core))

		ReportErr(ctx, errors.New("second"))
		assert.Len(t, errChan, 1)
		assert.Equal(t, 1, logs.FilterMessage("错误通道已满, 丢弃错误").Len())
	})

	t.Run("没有通道时写日志", func(t *testing.T) {
		core, logs := observer.New(zap.DebugLevel)
		ctx := WithLogger(context.Background(), zap.New(core))
		ReportErr(ctx, errors.New("lonely"))
		assert.Equal(t, 1, logs.Len())
	})
}
