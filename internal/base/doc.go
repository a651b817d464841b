// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package base defines fundamental types used across the tasr module: the
// corruption error marker shared by every decoding stage and the Logger
// interface.
package base
