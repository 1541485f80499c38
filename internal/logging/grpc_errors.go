// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FormatGatewayError renders an error returned by the SQL gateway for humans.
func FormatGatewayError(addr string, err error) string {
	if err == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(pterm.NewStyle(pterm.FgRed, pterm.Bold).Sprint("Gateway request failed"))
	b.WriteString("\n\n")

	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unavailable:
		fmt.Fprintf(&b, "No SQL gateway is reachable at %s.\n", addr)
		b.WriteString("Start one with: sqlaunch --gateway-addr " + addr + "\n")
	case codes.DeadlineExceeded:
		fmt.Fprintf(&b, "The gateway at %s did not answer in time.\n", addr)
	case codes.InvalidArgument:
		b.WriteString("The gateway rejected the statement.\n")
	case codes.NotFound:
		b.WriteString("The gateway does not know that job.\n")
	default:
		b.WriteString("The gateway returned an unexpected error.\n")
	}

	b.WriteString("\n")
	b.WriteString(pterm.NewStyle(pterm.FgGray).Sprint("Technical details: " + Mask(st.Message())))
	return b.String()
}
