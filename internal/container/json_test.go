package container_test

import (
	"encoding/json"
	"testing"

	"github.com/rpggio/chronicle/internal/container"
	"github.com/stretchr/testify/require"
)

func TestValueJSONRoundTripPreservesOrder(t *testing.T) {
	v := container.NewDict()
	v.Set("z", container.Number(1))
	v.Set("a", container.String("hi"))
	v.Set("list", container.NewList(container.Bool(true), container.Null()))

	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.Equal(t, `{"z":1,"a":"hi","list":[true,null]}`, string(data))

	var got container.Value
	require.NoError(t, json.Unmarshal(data, &got))
	require.True(t, container.Equal(v, &got))
	require.Equal(t, []string{"z", "a", "list"}, got.Keys())
}
