package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/YashBawari18/Online-TicketConsession/pkg/middleware/requestid"
)

const responseMetaKey = "response_meta"

type responseMeta struct {
	start  time.Time
	values map[string]interface{}
}

// WithResponseMeta starts the clock and the metadata bag that Meta reports for this request.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(responseMetaKey, &responseMeta{start: time.Now(), values: map[string]interface{}{}})
		c.Next()
	}
}

// SetMeta stores a value reported under key in the response meta.
func SetMeta(c *gin.Context, key string, value interface{}) {
	if rm := metaFrom(c); rm != nil {
		rm.values[key] = value
	}
}

// SetCacheHit records whether the response was served from cache.
func SetCacheHit(c *gin.Context, hit bool) {
	SetMeta(c, "cache_hit", hit)
}

// Meta returns a fresh map holding every value set for this request plus the request id and
// the elapsed processing time.
func Meta(c *gin.Context) map[string]interface{} {
	meta := map[string]interface{}{}
	if rm := metaFrom(c); rm != nil {
		for k, v := range rm.values {
			meta[k] = v
		}
		meta["processing_time_ms"] = time.Since(rm.start).Milliseconds()
	}
	if id := requestid.Value(c); id != "" {
		meta["request_id"] = id
	}
	return meta
}

func metaFrom(c *gin.Context) *responseMeta {
	if c == nil {
		return nil
	}
	value, ok := c.Get(responseMetaKey)
	if !ok {
		return nil
	}
	rm, _ := value.(*responseMeta)
	return rm
}
