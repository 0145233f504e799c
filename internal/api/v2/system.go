// system.go: operational introspection for administrators: host and
// runtime details, media disk usage, ingest queue counters and the
// staged MQTT connectivity test.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/mousetube/mousetube-go/internal/diskmanager"
	"github.com/mousetube/mousetube-go/internal/mqtt"
)

const mqttTestTimeout = 20 * time.Second

func (c *Controller) initSystemRoutes() {
	g := c.Group

	g.GET("/system/info", c.SystemInfo, c.adminRequired())
	g.GET("/system/queue", c.SystemQueue, c.adminRequired())
	g.POST("/system/mqtt/test", c.TestMQTTConnection, c.adminRequired())
}

// SystemInfo reports host, runtime and storage details.
func (c *Controller) SystemInfo(ctx echo.Context) error {
	info := map[string]any{
		"version":    c.Settings.Version,
		"build_date": c.Settings.BuildDate,
		"uptime_s":   int(time.Since(c.startTime).Seconds()),
	}

	if hostInfo, err := host.Info(); err == nil {
		info["host"] = map[string]any{
			"hostname":         hostInfo.Hostname,
			"os":               hostInfo.OS,
			"platform":         hostInfo.Platform,
			"platform_version": hostInfo.PlatformVersion,
			"kernel_version":   hostInfo.KernelVersion,
			"uptime_s":         hostInfo.Uptime,
		}
	} else {
		c.apiLogger.Warn("failed to read host info", "error", err)
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	info["runtime"] = map[string]any{
		"go_version":     runtime.Version(),
		"goroutines":     runtime.NumGoroutine(),
		"num_cpu":        runtime.NumCPU(),
		"heap_alloc_mb":  memStats.HeapAlloc / 1024 / 1024,
		"total_alloc_mb": memStats.TotalAlloc / 1024 / 1024,
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		info["memory"] = map[string]any{
			"total_mb":     vm.Total / 1024 / 1024,
			"used_mb":      vm.Used / 1024 / 1024,
			"used_percent": vm.UsedPercent,
		}
	}

	if usage, err := diskmanager.GetDetailedDiskUsage(c.Settings.Media.BasePath); err == nil {
		info["media_disk"] = map[string]any{
			"total_bytes": usage.TotalBytes,
			"used_bytes":  usage.UsedBytes,
		}
	} else {
		c.apiLogger.Warn("failed to read media disk usage",
			"path", c.Settings.Media.BasePath, "error", err)
	}

	if c.processor != nil {
		info["ingest_queue"] = c.processor.QueueStats()
	}
	if c.mqttSvc != nil {
		info["mqtt_connected"] = c.mqttSvc.Client().IsConnected()
	}
	return ctx.JSON(http.StatusOK, info)
}

// SystemQueue reports the ingest queue counters.
func (c *Controller) SystemQueue(ctx echo.Context) error {
	if c.processor == nil {
		return c.HandleError(ctx, nil, "Processing queue unavailable", http.StatusServiceUnavailable)
	}
	return ctx.JSON(http.StatusOK, c.processor.QueueStats())
}

// TestMQTTConnection runs the staged broker test and streams each
// stage result as a JSON line while the test progresses.
func (c *Controller) TestMQTTConnection(ctx echo.Context) error {
	if !c.Settings.MQTT.Enabled {
		return ctx.JSON(http.StatusOK, mqtt.TestResult{
			Success: false,
			Message: "MQTT is not enabled",
		})
	}

	client, err := mqtt.NewClient(c.Settings, c.metrics)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to create MQTT client", http.StatusInternalServerError)
	}

	ctx.Response().Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	ctx.Response().WriteHeader(http.StatusOK)

	started := time.Now()
	resultChan := make(chan mqtt.TestResult)
	go func() {
		defer close(resultChan)
		testCtx, cancel := context.WithTimeout(context.Background(), mqttTestTimeout)
		defer cancel()
		client.TestConnection(testCtx, resultChan)
		client.Disconnect()
	}()

	encoder := json.NewEncoder(ctx.Response())
	streamBroken := false
	for result := range resultChan {
		if streamBroken {
			continue
		}
		if err := encoder.Encode(result); err != nil {
			c.apiLogger.Error("failed to stream MQTT test result", "error", err)
			streamBroken = true
			continue
		}
		ctx.Response().Flush()
	}

	if !streamBroken {
		final := map[string]any{
			"state":           "completed",
			"elapsed_time_ms": time.Since(started).Milliseconds(),
		}
		if err := encoder.Encode(final); err == nil {
			ctx.Response().Flush()
		}
	}
	return nil
}
