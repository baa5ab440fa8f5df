// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package search routes a natural-language query to temporal, semantic or
// hybrid retrieval over a user's stored chunks.
//
// Classify decides the route with a lexical heuristic: a query without a
// recognized time phrase is semantic only; a query whose words are all time
// words or stop words once the phrase is removed is temporal only; anything
// else is temporal and semantic.
//
// The Retriever answers temporal-only queries from the time index alone,
// without calling the embedder, and scores every hit 1.0. Other queries are
// embedded and ranked by vector similarity, restricted to the parsed date
// range when there is one.
package search
