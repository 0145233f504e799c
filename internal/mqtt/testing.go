// testing.go: staged MQTT connectivity diagnostics exposed to the admin API.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"time"
)

// TestResult represents the result of one stage of an MQTT connectivity test.
type TestResult struct {
	Success    bool   `json:"success"`
	Stage      string `json:"stage"`
	Message    string `json:"message"`
	Error      string `json:"error,omitempty"`
	IsProgress bool   `json:"isProgress,omitempty"`
	State      string `json:"state,omitempty"`     // running, completed, failed, timeout
	Timestamp  string `json:"timestamp,omitempty"` // ISO8601 timestamp of the result
}

// TestStage represents a stage in the MQTT test process.
type TestStage int

const (
	DNSResolution TestStage = iota
	TCPConnection
	MQTTConnection
	MessagePublish
)

// String returns the string representation of a test stage.
func (s TestStage) String() string {
	switch s {
	case DNSResolution:
		return "DNS Resolution"
	case TCPConnection:
		return "TCP Connection"
	case MQTTConnection:
		return "MQTT Connection"
	case MessagePublish:
		return "Message Publishing"
	default:
		return "Unknown Stage"
	}
}

// Timeout constants for the individual test stages.
const (
	dnsTimeout  = 5 * time.Second
	tcpTimeout  = 5 * time.Second
	mqttTimeout = 10 * time.Second
	pubTimeout  = 5 * time.Second
)

// networkTest represents a generic network test function.
type networkTest func(context.Context) error

// runNetworkTest executes a network test with proper timeout and cleanup.
func runNetworkTest(ctx context.Context, stage TestStage, test networkTest) TestResult {
	resultChan := make(chan error, 1)

	go func() {
		resultChan <- test(ctx)
	}()

	select {
	case <-ctx.Done():
		return TestResult{
			Success: false,
			Stage:   stage.String(),
			Error:   "operation timeout",
			Message: fmt.Sprintf("%s operation timed out", stage),
		}
	case err := <-resultChan:
		if err != nil {
			return TestResult{
				Success: false,
				Stage:   stage.String(),
				Error:   err.Error(),
				Message: fmt.Sprintf("Failed to perform %s", stage),
			}
		}
	}

	return TestResult{
		Success: true,
		Stage:   stage.String(),
		Message: fmt.Sprintf("Successfully completed %s", stage),
	}
}

func (c *client) testDNSStage(ctx context.Context, brokerHost string) TestResult {
	dnsCtx, dnsCancel := context.WithTimeout(ctx, dnsTimeout)
	defer dnsCancel()

	return runNetworkTest(dnsCtx, DNSResolution, func(ctx context.Context) error {
		_, err := net.DefaultResolver.LookupHost(ctx, brokerHost)
		return err
	})
}

func (c *client) testTCPStage(ctx context.Context) TestResult {
	tcpCtx, tcpCancel := context.WithTimeout(ctx, tcpTimeout)
	defer tcpCancel()

	return runNetworkTest(tcpCtx, TCPConnection, func(ctx context.Context) error {
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", extractHostPort(c.config.Broker))
		if err != nil {
			return err
		}
		defer conn.Close()
		return nil
	})
}

func (c *client) testMQTTStage(ctx context.Context) TestResult {
	if c.IsConnected() {
		return TestResult{
			Success: true,
			Stage:   MQTTConnection.String(),
			Message: "Already connected to MQTT broker",
		}
	}

	mqttCtx, mqttCancel := context.WithTimeout(ctx, mqttTimeout)
	defer mqttCancel()

	return runNetworkTest(mqttCtx, MQTTConnection, func(ctx context.Context) error {
		return c.Connect(ctx)
	})
}

func (c *client) testPublishStage(ctx context.Context) TestResult {
	pubCtx, pubCancel := context.WithTimeout(ctx, pubTimeout)
	defer pubCancel()

	return runNetworkTest(pubCtx, MessagePublish, func(ctx context.Context) error {
		msg := Message{
			Node:      c.config.ClientID,
			Event:     "connectivity.test",
			Timestamp: time.Now().Format(time.RFC3339),
		}

		payload, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("failed to create test message: %w", err)
		}

		return c.Publish(ctx, constructTestTopic(c.config.Topic), string(payload))
	})
}

// TestConnection performs a multi-stage test of the MQTT connection and
// functionality, streaming per-stage results to resultChan.
func (c *client) TestConnection(ctx context.Context, resultChan chan<- TestResult) {
	sendResult := func(result TestResult) {
		result.IsProgress = strings.Contains(strings.ToLower(result.Message), "running")

		switch {
		case result.Error != "":
			if strings.Contains(strings.ToLower(result.Error), "timeout") ||
				strings.Contains(strings.ToLower(result.Error), "deadline exceeded") {
				result.State = "timeout"
			} else {
				result.State = "failed"
			}
			result.Success = false
			result.IsProgress = false
		case result.IsProgress:
			result.State = "running"
		case result.Success:
			result.State = "completed"
		default:
			result.State = "failed"
		}

		result.Timestamp = time.Now().Format(time.RFC3339)

		if result.Success {
			logger.Info("MQTT test stage", "stage", result.Stage, "message", result.Message)
		} else {
			logger.Warn("MQTT test stage failed", "stage", result.Stage,
				"message", result.Message, "error", result.Error)
		}

		select {
		case <-ctx.Done():
			return
		case resultChan <- result:
		}
	}

	if err := ctx.Err(); err != nil {
		sendResult(TestResult{
			Success: false,
			Stage:   "Test Setup",
			Message: "Test cancelled",
			Error:   err.Error(),
			State:   "timeout",
		})
		return
	}

	brokerHost := extractHost(c.config.Broker)
	isIP := isIPAddress(brokerHost)

	runStage := func(stage TestStage, test func() TestResult) bool {
		sendResult(TestResult{
			Success: true,
			Stage:   stage.String(),
			Message: fmt.Sprintf("Running %s test...", stage.String()),
		})

		result := test()
		sendResult(result)
		return result.Success
	}

	// DNS resolution is pointless for IP address brokers
	if !isIP {
		if !runStage(DNSResolution, func() TestResult {
			return c.testDNSStage(ctx, brokerHost)
		}) {
			return
		}
	}

	if !runStage(TCPConnection, func() TestResult {
		return c.testTCPStage(ctx)
	}) {
		return
	}

	if !runStage(MQTTConnection, func() TestResult {
		return c.testMQTTStage(ctx)
	}) {
		return
	}

	runStage(MessagePublish, func() TestResult {
		return c.testPublishStage(ctx)
	})
}

// constructTestTopic creates a proper test topic path handling edge cases.
func constructTestTopic(baseTopic string) string {
	baseTopic = strings.TrimRight(baseTopic, "/")
	if baseTopic == "" {
		return defaultBaseTopic + "/test"
	}
	return baseTopic + "/test"
}

// isIPAddress checks if the given host is an IP address.
func isIPAddress(host string) bool {
	// Remove protocol prefix if present
	if strings.Contains(host, "://") {
		parts := strings.Split(host, "://")
		if len(parts) != 2 {
			return false
		}
		// Only allow mqtt and tcp protocols
		if parts[0] != "mqtt" && parts[0] != "tcp" {
			return false
		}
		host = parts[1]
	}

	// Handle IPv6 addresses with brackets
	if strings.HasPrefix(host, "[") {
		end := strings.LastIndex(host, "]")
		if end == -1 {
			return false // opening bracket but no closing bracket
		}
		host = host[1:end]
	} else if strings.Contains(host, ":") {
		// A colon without brackets is either an IPv4 host:port or a raw
		// IPv6 address. More than one colon means IPv6.
		if strings.Count(host, ":") <= 1 {
			host = strings.Split(host, ":")[0]
		}
	}

	return net.ParseIP(host) != nil
}

// extractHost extracts the hostname from broker URL.
func extractHost(broker string) string {
	if strings.Contains(broker, "://") {
		parts := strings.Split(broker, "://")
		if len(parts) != 2 {
			return broker
		}
		broker = parts[1]
	}

	// IPv6 with brackets
	if strings.HasPrefix(broker, "[") {
		end := strings.LastIndex(broker, "]")
		if end == -1 {
			return broker
		}
		return broker[1:end]
	}

	// IPv4 or hostname, strip the port if present
	if strings.Count(broker, ":") <= 1 {
		if i := strings.LastIndex(broker, ":"); i != -1 {
			return broker[:i]
		}
	}
	// Raw IPv6 without port
	return broker
}

// extractHostPort extracts host:port from broker URL, defaulting to 1883.
func extractHostPort(broker string) string {
	if strings.Contains(broker, "://") {
		parts := strings.Split(broker, "://")
		if len(parts) != 2 {
			return broker
		}
		broker = parts[1]
	}

	if strings.HasPrefix(broker, "[") {
		// IPv6 with port
		if i := strings.LastIndex(broker, "]:"); i != -1 {
			return broker
		}
		// IPv6 without port
		if strings.HasSuffix(broker, "]") {
			return broker[:len(broker)-1] + "]:1883"
		}
		return broker
	}

	// Raw IPv6 address
	if strings.Count(broker, ":") > 1 {
		return "[" + broker + "]:1883"
	}

	if !strings.Contains(broker, ":") {
		return broker + ":1883"
	}

	return broker
}
