// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/pterm/pterm"
)

// ConnectProblem classifies why a database connection could not be opened.
type ConnectProblem string

const (
	ProblemTimeout  ConnectProblem = "timeout"
	ProblemDNS      ConnectProblem = "dns"
	ProblemRefused  ConnectProblem = "refused"
	ProblemTLS      ConnectProblem = "tls"
	ProblemAuth     ConnectProblem = "auth"
	ProblemDatabase ConnectProblem = "database"
	ProblemOther    ConnectProblem = "other"
)

// ClassifyConnectError inspects an engine open/ping error.
func ClassifyConnectError(err error) ConnectProblem {
	if err == nil {
		return ""
	}
	lower := strings.ToLower(err.Error())

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) || strings.Contains(lower, "no such host") {
		return ProblemDNS
	}
	var netErr net.Error
	if (errors.As(err, &netErr) && netErr.Timeout()) ||
		strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline exceeded") {
		return ProblemTimeout
	}
	if errors.Is(err, syscall.ECONNREFUSED) || strings.Contains(lower, "connection refused") {
		return ProblemRefused
	}
	switch {
	case strings.Contains(lower, "tls"), strings.Contains(lower, "ssl"),
		strings.Contains(lower, "certificate"), strings.Contains(lower, "handshake"):
		return ProblemTLS
	case strings.Contains(lower, "password authentication failed"),
		strings.Contains(lower, "login failed"),
		strings.Contains(lower, "authentication"):
		return ProblemAuth
	case strings.Contains(lower, "does not exist"), strings.Contains(lower, "cannot open database"),
		strings.Contains(lower, "unable to open database"):
		return ProblemDatabase
	}
	return ProblemOther
}

// DescribeConnectError renders an engine connection failure with hints on
// what to check. The technical detail is masked.
func DescribeConnectError(engine string, err error) string {
	if err == nil {
		return ""
	}
	var b strings.Builder
	title := func(s string) {
		b.WriteString(pterm.NewStyle(pterm.FgRed, pterm.Bold).Sprint(s))
		b.WriteString("\n\n")
	}
	hints := func(lines ...string) {
		for _, l := range lines {
			b.WriteString("  • " + l + "\n")
		}
	}

	switch ClassifyConnectError(err) {
	case ProblemTimeout:
		title("⏱️  Connection to " + engine + " timed out")
		hints("the host is reachable from this machine", "no firewall is dropping the port", "the server is not overloaded")
	case ProblemDNS:
		title("🌐 Cannot resolve the " + engine + " host")
		hints("the host name in the DSN is spelled correctly", "DNS works on this network")
	case ProblemRefused:
		title("🚫 " + engine + " refused the connection")
		hints("the server is running", "the port in the DSN is right")
	case ProblemTLS:
		title("🔒 Secure connection to " + engine + " failed")
		hints("the server certificate is trusted", "sslmode/encrypt settings in the DSN match the server", "the system clock is correct")
	case ProblemAuth:
		title("🔑 " + engine + " rejected the credentials")
		hints("user and password in the DSN", "the user may connect from this host")
	case ProblemDatabase:
		title("🗄️  The database does not exist or cannot be opened")
		hints("the database name or file path in the DSN", "file permissions for sqlite databases")
	default:
		title("❌ Could not open " + engine)
	}
	b.WriteString("\n")
	b.WriteString(pterm.NewStyle(pterm.FgGray).Sprint("Technical details: " + Mask(err.Error())))
	return b.String()
}
